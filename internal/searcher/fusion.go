package searcher

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dshills/hybridrag/pkg/types"
)

const (
	// DefaultRRFConstant is the K smoothing constant of reciprocal rank fusion
	DefaultRRFConstant = 60

	// DefaultKeywordHeavyLength is the query length below which keywords are favoured
	DefaultKeywordHeavyLength = 20
)

// Weights are the per-signal multipliers of reciprocal rank fusion
type Weights struct {
	Semantic float64
	Keyword  float64
}

var (
	// BalancedWeights favour meaning for descriptive questions
	BalancedWeights = Weights{Semantic: 0.6, Keyword: 0.4}

	// KeywordHeavyWeights favour exact matches for numbers, quotes and short queries
	KeywordHeavyWeights = Weights{Semantic: 0.4, Keyword: 0.6}

	// SemanticOnlyWeights are used when keyword search is unavailable
	SemanticOnlyWeights = Weights{Semantic: 1.0}

	// KeywordOnlyWeights are used when no query embedding is available
	KeywordOnlyWeights = Weights{Keyword: 1.0}
)

var (
	digitRun     = regexp.MustCompile(`\d+`)
	quotedString = regexp.MustCompile(`"[^"]+"|“[^”]+”|(^|\s)'[^']+'(\s|$|[[:punct:]])`)
)

// AdaptiveWeights classifies query as keyword-heavy when it contains a digit
// run or a quoted substring, or is shorter than shortLength characters.
func AdaptiveWeights(query string, shortLength int) Weights {
	if IsKeywordHeavy(query, shortLength) {
		return KeywordHeavyWeights
	}
	return BalancedWeights
}

// IsKeywordHeavy reports whether query should favour keyword ranking
func IsKeywordHeavy(query string, shortLength int) bool {
	q := strings.TrimSpace(query)
	return digitRun.MatchString(q) ||
		quotedString.MatchString(q) ||
		utf8.RuneCountInString(q) < shortLength
}

// FusionConfig controls Fuse
type FusionConfig struct {
	K     float64 // smoothing constant, DefaultRRFConstant when zero
	Limit int     // maximum results, unlimited when zero
}

// Fuse merges two ranked lists with weighted reciprocal rank fusion:
//
//	rrf(c) = w_sem/(K+rank_sem(c)) + w_kw/(K+rank_kw(c))
//
// Both inputs are first re-ranked by score descending then chunk id, so the
// result depends only on their contents. CombinedScore is rrf normalized by
// the best attainable value (w_sem+w_kw)/(K+1). Results are sorted by
// CombinedScore descending, ties by chunk id. Content and Filename are left
// empty for the caller to fill in.
func Fuse(semantic, keyword []Hit, w Weights, cfg FusionConfig) []types.SearchResult {
	k := cfg.K
	if k <= 0 {
		k = DefaultRRFConstant
	}

	byID := make(map[int64]*types.SearchResult)
	get := func(id int64) *types.SearchResult {
		r, ok := byID[id]
		if !ok {
			r = &types.SearchResult{ChunkID: id}
			byID[id] = r
		}
		return r
	}

	for i, h := range rankHits(semantic) {
		r := get(h.ChunkID)
		r.SemanticRank = i + 1
		r.SemanticScore = h.Score
		r.RRFScore += w.Semantic / (k + float64(i+1))
	}
	for i, h := range rankHits(keyword) {
		r := get(h.ChunkID)
		r.KeywordRank = i + 1
		r.KeywordScore = h.Score
		r.RRFScore += w.Keyword / (k + float64(i+1))
	}

	maxScore := (w.Semantic + w.Keyword) / (k + 1)
	results := make([]types.SearchResult, 0, len(byID))
	for _, r := range byID {
		if maxScore > 0 {
			r.CombinedScore = min(r.RRFScore/maxScore, 1)
		}
		switch {
		case r.SemanticRank > 0 && r.KeywordRank > 0:
			r.Provenance = types.ProvenanceHybrid
		case r.SemanticRank > 0:
			r.Provenance = types.ProvenanceSemantic
		default:
			r.Provenance = types.ProvenanceKeyword
		}
		results = append(results, *r)
	}

	SortResults(results)
	if cfg.Limit > 0 && len(results) > cfg.Limit {
		results = results[:cfg.Limit]
	}
	return results
}

// SortResults orders results by CombinedScore descending, ties by chunk id
func SortResults(results []types.SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}

// rankHits returns a sorted copy of hits with duplicate chunk ids removed,
// keeping each chunk's best score.
func rankHits(hits []Hit) []Hit {
	best := make(map[int64]float64, len(hits))
	for _, h := range hits {
		if s, ok := best[h.ChunkID]; !ok || h.Score > s {
			best[h.ChunkID] = h.Score
		}
	}
	ranked := make([]Hit, 0, len(best))
	for id, score := range best {
		ranked = append(ranked, Hit{ChunkID: id, Score: score})
	}
	sortHits(ranked)
	return ranked
}

// sortHits sorts by score descending, ties by chunk id ascending
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}

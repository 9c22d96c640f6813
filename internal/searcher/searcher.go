package searcher

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dshills/hybridrag/internal/storage"
	"github.com/dshills/hybridrag/pkg/types"
)

// Default retrieval limits
const (
	DefaultSemanticThreshold = 0.15
	DefaultSemanticLimit     = 15
	DefaultKeywordLimit      = 15
	DefaultFusionLimit       = 15
)

// Config holds retrieval tunables. Zero fields take their defaults except
// SemanticThreshold, where zero keeps every scored chunk and only a negative
// value selects DefaultSemanticThreshold. Start from DefaultConfig.
type Config struct {
	SemanticThreshold  float64
	SemanticLimit      int
	KeywordLimit       int
	FusionLimit        int
	RRFConstant        float64
	KeywordHeavyLength int

	// Weights overrides adaptive weighting when set
	Weights *Weights
}

// DefaultConfig returns the standard retrieval tunables
func DefaultConfig() Config {
	return Config{
		SemanticThreshold:  DefaultSemanticThreshold,
		SemanticLimit:      DefaultSemanticLimit,
		KeywordLimit:       DefaultKeywordLimit,
		FusionLimit:        DefaultFusionLimit,
		RRFConstant:        DefaultRRFConstant,
		KeywordHeavyLength: DefaultKeywordHeavyLength,
	}
}

func (c *Config) applyDefaults() {
	if c.SemanticThreshold < 0 {
		c.SemanticThreshold = DefaultSemanticThreshold
	}
	if c.SemanticLimit <= 0 {
		c.SemanticLimit = DefaultSemanticLimit
	}
	if c.KeywordLimit <= 0 {
		c.KeywordLimit = DefaultKeywordLimit
	}
	if c.FusionLimit <= 0 {
		c.FusionLimit = DefaultFusionLimit
	}
	if c.RRFConstant <= 0 {
		c.RRFConstant = DefaultRRFConstant
	}
	if c.KeywordHeavyLength <= 0 {
		c.KeywordHeavyLength = DefaultKeywordHeavyLength
	}
}

// Searcher runs hybrid retrieval for one query fragment
type Searcher struct {
	store      storage.Store
	candidates *CandidateFilter
	semantic   *SemanticSearcher
	keyword    *KeywordSearcher
	cfg        Config
	logger     *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// NewSearcher creates a new Searcher instance
func NewSearcher(store storage.Store, cfg Config, opts ...Option) *Searcher {
	cfg.applyDefaults()
	s := &Searcher{
		store:      store,
		candidates: NewCandidateFilter(store),
		semantic:   NewSemanticSearcher(store, cfg.SemanticThreshold, cfg.SemanticLimit),
		keyword:    NewKeywordSearcher(store, cfg.KeywordLimit),
		cfg:        cfg,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "searcher")
	return s
}

// Candidates resolves the chunks role may search
func (s *Searcher) Candidates(ctx context.Context, role string, scope []string) (*storage.CandidateSet, error) {
	return s.candidates.Resolve(ctx, role, scope)
}

// WeightsFor returns the fusion weights for query
func (s *Searcher) WeightsFor(query string) Weights {
	if s.cfg.Weights != nil {
		return *s.cfg.Weights
	}
	return AdaptiveWeights(query, s.cfg.KeywordHeavyLength)
}

// searchResult holds results from concurrent search operations
type searchResult struct {
	hits []Hit
	err  error
}

// runSemanticSearch executes semantic search in a goroutine
func (s *Searcher) runSemanticSearch(ctx context.Context, vector []float32, cands *storage.CandidateSet, resultChan chan<- searchResult) {
	var res searchResult
	res.hits, res.err = s.semantic.Search(ctx, vector, cands)
	select {
	case resultChan <- res:
	case <-ctx.Done():
	}
}

// runKeywordSearch executes keyword search in a goroutine
func (s *Searcher) runKeywordSearch(ctx context.Context, text string, cands *storage.CandidateSet, resultChan chan<- searchResult) {
	var res searchResult
	res.hits, res.err = s.keyword.Search(ctx, text, cands)
	select {
	case resultChan <- res:
	case <-ctx.Done():
	}
}

// Hybrid runs semantic and keyword search for one fragment concurrently and
// fuses them. A keyword failure degrades to semantic-only ranking tagged
// semantic-fallback; a semantic failure is returned.
func (s *Searcher) Hybrid(ctx context.Context, text string, vector []float32, cands *storage.CandidateSet) ([]types.SearchResult, error) {
	semanticChan := make(chan searchResult, 1)
	keywordChan := make(chan searchResult, 1)

	go s.runSemanticSearch(ctx, vector, cands, semanticChan)
	go s.runKeywordSearch(ctx, text, cands, keywordChan)

	// Wait for both searches
	var semanticRes, keywordRes searchResult
	var semanticDone, keywordDone bool
	for !semanticDone || !keywordDone {
		select {
		case semanticRes = <-semanticChan:
			semanticDone = true
		case keywordRes = <-keywordChan:
			keywordDone = true
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if semanticRes.err != nil {
		return nil, semanticRes.err
	}

	fusion := FusionConfig{K: s.cfg.RRFConstant, Limit: s.cfg.FusionLimit}
	var fused []types.SearchResult
	if keywordRes.err != nil {
		s.logger.Warn("keyword search failed, using semantic ranking only",
			"fragment", text, "error", keywordRes.err)
		fused = Fuse(semanticRes.hits, nil, SemanticOnlyWeights, fusion)
		tag(fused, types.ProvenanceSemanticFallback)
	} else {
		fused = Fuse(semanticRes.hits, keywordRes.hits, s.WeightsFor(text), fusion)
	}

	s.logger.Debug("fragment searched",
		"fragment", text,
		"semantic_hits", len(semanticRes.hits),
		"keyword_hits", len(keywordRes.hits),
		"fused", len(fused))

	return s.hydrate(ctx, fused)
}

// KeywordOnly ranks a fragment by keyword relevance alone, tagged
// keyword-fallback. It serves queries whose embedding could not be produced.
func (s *Searcher) KeywordOnly(ctx context.Context, text string, cands *storage.CandidateSet) ([]types.SearchResult, error) {
	hits, err := s.keyword.Search(ctx, text, cands)
	if err != nil {
		return nil, types.NewError(types.KindInternal, err, "keyword search failed")
	}
	fused := Fuse(nil, hits, KeywordOnlyWeights, FusionConfig{K: s.cfg.RRFConstant, Limit: s.cfg.FusionLimit})
	tag(fused, types.ProvenanceKeywordFallback)
	return s.hydrate(ctx, fused)
}

// hydrate fills content and filename. Chunks deleted since ranking are dropped.
func (s *Searcher) hydrate(ctx context.Context, results []types.SearchResult) ([]types.SearchResult, error) {
	if len(results) == 0 {
		return results, nil
	}

	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
	}
	records, err := s.store.GetChunks(ctx, ids)
	if err != nil {
		return nil, types.NewError(types.KindInternal, err, "failed to load ranked chunks")
	}

	byID := make(map[int64]*storage.ChunkRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	out := results[:0]
	for _, r := range results {
		rec, ok := byID[r.ChunkID]
		if !ok {
			continue
		}
		r.DocumentID = rec.DocumentID
		r.Filename = rec.Filename
		r.ChunkIndex = rec.ChunkIndex
		r.Content = rec.Content
		out = append(out, r)
	}
	return out, nil
}

func tag(results []types.SearchResult, p types.Provenance) {
	for i := range results {
		results[i].Provenance = p
	}
}

// IsEmbeddingUnavailable reports whether err means the corpus has no usable embeddings
func IsEmbeddingUnavailable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable)
}

package searcher

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hybridrag/pkg/types"
)

func TestAdaptiveWeights(t *testing.T) {
	tests := []struct {
		query string
		want  Weights
	}{
		{"What is the parental leave policy for new employees?", BalancedWeights},
		{"What was revenue in Q3 2023 across all regions?", KeywordHeavyWeights},
		{`Where is the "travel expense" form kept these days?`, KeywordHeavyWeights},
		{"Where is the ‘brand’ guide", BalancedWeights},
		{"Who owns the 'onboarding checklist' document now?", KeywordHeavyWeights},
		{"What's the company's remote work stance overall?", BalancedWeights},
		{"payday", KeywordHeavyWeights},
		{"   short question?   ", KeywordHeavyWeights},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, AdaptiveWeights(tt.query, DefaultKeywordHeavyLength))
		})
	}
}

func TestFuse_Formula(t *testing.T) {
	semantic := []Hit{{ChunkID: 1, Score: 0.9}, {ChunkID: 2, Score: 0.8}}
	keyword := []Hit{{ChunkID: 2, Score: 0.7}, {ChunkID: 3, Score: 0.5}}

	results := Fuse(semantic, keyword, BalancedWeights, FusionConfig{K: 60})
	require.Len(t, results, 3)

	byID := make(map[int64]types.SearchResult)
	for _, r := range results {
		byID[r.ChunkID] = r
	}

	assert.InDelta(t, 0.6/61, byID[1].RRFScore, 1e-12)
	assert.InDelta(t, 0.6/62+0.4/61, byID[2].RRFScore, 1e-12)
	assert.InDelta(t, 0.4/62, byID[3].RRFScore, 1e-12)

	assert.Equal(t, types.ProvenanceSemantic, byID[1].Provenance)
	assert.Equal(t, types.ProvenanceHybrid, byID[2].Provenance)
	assert.Equal(t, types.ProvenanceKeyword, byID[3].Provenance)

	assert.Equal(t, 2, byID[2].SemanticRank)
	assert.Equal(t, 1, byID[2].KeywordRank)
	assert.InDelta(t, 0.8, byID[2].SemanticScore, 1e-12)

	// Chunk 2 appears in both lists and wins
	assert.Equal(t, int64(2), results[0].ChunkID)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.CombinedScore, 0.0)
		assert.LessOrEqual(t, r.CombinedScore, 1.0)
	}
}

func TestFuse_TopOfBothListsScoresOne(t *testing.T) {
	results := Fuse([]Hit{{ChunkID: 7, Score: 1}}, []Hit{{ChunkID: 7, Score: 1}}, KeywordHeavyWeights, FusionConfig{})
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].CombinedScore, 1e-12)
}

func TestFuse_OrderInvariant(t *testing.T) {
	semantic := []Hit{{1, 0.9}, {2, 0.85}, {3, 0.85}, {4, 0.4}, {5, 0.3}}
	keyword := []Hit{{5, 3.0}, {3, 2.0}, {6, 2.0}, {1, 0.5}}

	want := Fuse(semantic, keyword, BalancedWeights, FusionConfig{Limit: 15})

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		s := append([]Hit(nil), semantic...)
		k := append([]Hit(nil), keyword...)
		rng.Shuffle(len(s), func(a, b int) { s[a], s[b] = s[b], s[a] })
		rng.Shuffle(len(k), func(a, b int) { k[a], k[b] = k[b], k[a] })
		assert.Equal(t, want, Fuse(s, k, BalancedWeights, FusionConfig{Limit: 15}))
	}
}

func TestFuse_TiesBrokenByChunkID(t *testing.T) {
	// 9 ranks first semantically, 4 first by keyword: equal weights tie them
	results := Fuse([]Hit{{9, 0.9}}, []Hit{{4, 5}}, Weights{Semantic: 0.5, Keyword: 0.5}, FusionConfig{})
	require.Len(t, results, 2)
	assert.Equal(t, results[0].CombinedScore, results[1].CombinedScore)
	assert.Equal(t, int64(4), results[0].ChunkID)
	assert.Equal(t, int64(9), results[1].ChunkID)
}

func TestFuse_ScoreDecreasesWithRank(t *testing.T) {
	hits := make([]Hit, 20)
	for i := range hits {
		hits[i] = Hit{ChunkID: int64(i + 1), Score: 1 - float64(i)*0.01}
	}
	results := Fuse(hits, nil, SemanticOnlyWeights, FusionConfig{})
	for i := 1; i < len(results); i++ {
		assert.Less(t, results[i].CombinedScore, results[i-1].CombinedScore)
	}
}

func TestFuse_LimitAndDuplicates(t *testing.T) {
	var semantic []Hit
	for i := 1; i <= 30; i++ {
		semantic = append(semantic, Hit{ChunkID: int64(i), Score: 1 / float64(i)})
	}
	semantic = append(semantic, Hit{ChunkID: 1, Score: 0.01}) // duplicate, lower score

	results := Fuse(semantic, nil, BalancedWeights, FusionConfig{Limit: 15})
	require.Len(t, results, 15)
	assert.Equal(t, int64(1), results[0].ChunkID)
	assert.Equal(t, 1, results[0].SemanticRank)

	assert.Empty(t, Fuse(nil, nil, BalancedWeights, FusionConfig{}))
}

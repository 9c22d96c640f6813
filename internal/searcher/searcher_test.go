package searcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hybridrag/internal/storage"
	"github.com/dshills/hybridrag/pkg/types"
)

// failingTextStore breaks full-text search while delegating everything else
type failingTextStore struct {
	storage.Store
}

func (f failingTextStore) SearchText(context.Context, storage.TextQuery) ([]storage.TextResult, error) {
	return nil, errors.New("fts index unavailable")
}

func setupTestStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type seedChunk struct {
	content string
	vector  []float32
}

func seed(t *testing.T, store storage.Store, id, owner string, status types.DocumentStatus, visible []string, chunks ...seedChunk) []*types.Chunk {
	t.Helper()
	ctx := context.Background()

	grants := make(map[string]bool)
	for _, r := range visible {
		grants[r] = true
	}
	require.NoError(t, store.UpsertDocument(ctx, &types.Document{
		ID: id, Filename: id + ".txt", OwnerRole: owner, Status: types.StatusProcessing, VisibleTo: grants,
	}))

	records := make([]*types.Chunk, len(chunks))
	for i, c := range chunks {
		records[i] = &types.Chunk{DocumentID: id, ChunkIndex: i, Content: c.content}
	}
	require.NoError(t, store.InsertChunks(ctx, records))
	for i, c := range chunks {
		if c.vector == nil {
			continue
		}
		require.NoError(t, store.UpsertEmbedding(ctx, &storage.Embedding{
			ChunkID: records[i].ID, Vector: c.vector, Provider: "test", Model: "test",
		}))
	}
	require.NoError(t, store.UpdateDocumentStatus(ctx, storage.StatusUpdate{
		DocumentID: id, Status: status, ChunkCount: len(records),
	}))
	return records
}

func seedCorpus(t *testing.T, store storage.Store) []*types.Chunk {
	return seed(t, store, "handbook", "hr", types.StatusCompleted, []string{"staff"},
		seedChunk{"Employees accrue vacation days monthly.", []float32{1, 0, 0}},
		seedChunk{"Parental leave lasts sixteen weeks.", []float32{0.9, 0.1, 0}},
		seedChunk{"The cafeteria opens at noon.", []float32{0, 0, 1}},
	)
}

func TestCandidateFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedCorpus(t, store)
	seed(t, store, "draft", "hr", types.StatusChunksReady, []string{"staff"},
		seedChunk{"Unfinished draft text.", []float32{1, 0, 0}})

	f := NewCandidateFilter(store)

	set, err := f.Resolve(ctx, "staff", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"handbook"}, set.DocumentIDs)
	assert.Len(t, set.ChunkIDs, 3)

	_, err = f.Resolve(ctx, "contractor", nil)
	assert.ErrorIs(t, err, types.ErrDocumentsUnavailable)

	_, err = f.Resolve(ctx, "staff", []string{"draft"})
	assert.ErrorIs(t, err, types.ErrDocumentsUnavailable)

	_, err = f.Resolve(ctx, "", nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestHybrid(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	chunks := seedCorpus(t, store)

	s := NewSearcher(store, DefaultConfig())
	cands, err := s.Candidates(ctx, "hr", nil)
	require.NoError(t, err)

	results, err := s.Hybrid(ctx, "How does parental leave work for employees?", []float32{0.9, 0.1, 0}, cands)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Equal(t, chunks[1].ID, top.ChunkID)
	assert.Equal(t, types.ProvenanceHybrid, top.Provenance)
	assert.Equal(t, "handbook", top.DocumentID)
	assert.Equal(t, "handbook.txt", top.Filename)
	assert.Equal(t, "Parental leave lasts sixteen weeks.", top.Content)

	for _, r := range results {
		assert.NoError(t, r.Validate())
		// the cafeteria chunk is orthogonal and has no shared terms
		assert.NotEqual(t, chunks[2].ID, r.ChunkID)
	}
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].CombinedScore, results[i].CombinedScore)
	}
}

func TestHybrid_KeywordFailureFallsBack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedCorpus(t, store)

	s := NewSearcher(failingTextStore{Store: store}, DefaultConfig())
	cands, err := s.Candidates(ctx, "staff", nil)
	require.NoError(t, err)

	results, err := s.Hybrid(ctx, "vacation accrual", []float32{1, 0, 0}, cands)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, types.ProvenanceSemanticFallback, r.Provenance)
		assert.Zero(t, r.KeywordRank)
	}
}

func TestHybrid_NoUsableEmbeddings(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seed(t, store, "notes", "ops", types.StatusCompleted, nil,
		seedChunk{content: "Rotate the on-call schedule weekly."})

	s := NewSearcher(store, DefaultConfig())
	cands, err := s.Candidates(ctx, "ops", nil)
	require.NoError(t, err)

	_, err = s.Hybrid(ctx, "on-call rotation", []float32{1, 0, 0}, cands)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmbeddingFailed)
	assert.True(t, IsEmbeddingUnavailable(err))

	// Mismatched dimensions are just as unusable
	seed(t, store, "runbook", "ops", types.StatusCompleted, nil,
		seedChunk{"Page the secondary after ten minutes.", []float32{1, 0}})
	cands, err = s.Candidates(ctx, "ops", nil)
	require.NoError(t, err)
	_, err = s.Hybrid(ctx, "paging", []float32{1, 0, 0}, cands)
	assert.ErrorIs(t, err, types.ErrEmbeddingFailed)
}

func TestKeywordOnly(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	chunks := seedCorpus(t, store)

	s := NewSearcher(store, DefaultConfig())
	cands, err := s.Candidates(ctx, "staff", nil)
	require.NoError(t, err)

	results, err := s.KeywordOnly(ctx, "cafeteria", cands)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chunks[2].ID, results[0].ChunkID)
	assert.Equal(t, types.ProvenanceKeywordFallback, results[0].Provenance)
	assert.InDelta(t, 1.0, results[0].CombinedScore, 1e-9)
}

func TestWeightsFor(t *testing.T) {
	s := NewSearcher(setupTestStore(t), DefaultConfig())
	assert.Equal(t, KeywordHeavyWeights, s.WeightsFor("Q3 revenue"))
	assert.Equal(t, BalancedWeights, s.WeightsFor("How should managers handle remote onboarding?"))

	fixed := Weights{Semantic: 0.5, Keyword: 0.5}
	cfg := DefaultConfig()
	cfg.Weights = &fixed
	s = NewSearcher(setupTestStore(t), cfg)
	assert.Equal(t, fixed, s.WeightsFor("Q3 revenue"))
}

func TestHybrid_RespectsScope(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedCorpus(t, store)
	other := seed(t, store, "policy", "hr", types.StatusCompleted, nil,
		seedChunk{"Vacation carry-over is capped at five days.", []float32{1, 0, 0}})

	s := NewSearcher(store, DefaultConfig())
	cands, err := s.Candidates(ctx, "hr", []string{"policy"})
	require.NoError(t, err)

	results, err := s.Hybrid(ctx, "vacation carry over", []float32{1, 0, 0}, cands)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, other[0].ID, results[0].ChunkID)
}

func TestConfig_SemanticThreshold(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	chunks := seedCorpus(t, store)

	unset := Config{SemanticThreshold: -1}
	unset.applyDefaults()
	assert.InDelta(t, DefaultSemanticThreshold, unset.SemanticThreshold, 1e-9)

	// A zero threshold is honoured and keeps the orthogonal cafeteria chunk
	s := NewSearcher(store, Config{SemanticThreshold: 0})
	cands, err := s.Candidates(ctx, "hr", nil)
	require.NoError(t, err)
	hits, err := s.semantic.Search(ctx, []float32{1, 0, 0}, cands)
	require.NoError(t, err)
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	assert.Contains(t, ids, chunks[2].ID)

	s = NewSearcher(store, DefaultConfig())
	hits, err = s.semantic.Search(ctx, []float32{1, 0, 0}, cands)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, chunks[2].ID, h.ChunkID)
	}
}

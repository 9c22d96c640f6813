package searcher

import (
	"context"
	"errors"

	"github.com/dshills/hybridrag/internal/storage"
	"github.com/dshills/hybridrag/pkg/types"
)

// ErrEmbeddingUnavailable means no eligible chunk has an embedding whose
// dimension matches the query. It surfaces as an EmbeddingFailed error.
var ErrEmbeddingUnavailable = errors.New("no eligible chunk has a usable embedding")

// Hit is one entry of a ranked list
type Hit struct {
	ChunkID int64
	Score   float64
}

// SemanticSearcher ranks candidate chunks by cosine similarity to a query embedding
type SemanticSearcher struct {
	store     storage.Store
	threshold float64
	limit     int
}

// NewSemanticSearcher creates a semantic searcher keeping at most limit hits
// with similarity >= threshold.
func NewSemanticSearcher(store storage.Store, threshold float64, limit int) *SemanticSearcher {
	return &SemanticSearcher{store: store, threshold: threshold, limit: limit}
}

// Search returns hits sorted by similarity descending, ties by chunk id.
// Chunks with mismatched embedding dimensions are skipped; if none of the
// candidates is usable the search fails.
func (s *SemanticSearcher) Search(ctx context.Context, vector []float32, candidates *storage.CandidateSet) ([]Hit, error) {
	if len(vector) == 0 {
		return nil, types.NewError(types.KindEmbeddingFailed, ErrEmbeddingUnavailable, "query embedding is empty")
	}

	results, stats, err := s.store.SearchVector(ctx, storage.VectorQuery{
		Vector:        vector,
		DocumentIDs:   candidates.DocumentIDs,
		MinSimilarity: s.threshold,
		Limit:         s.limit,
	})
	if err != nil {
		return nil, types.NewError(types.KindInternal, err, "semantic search failed")
	}
	if stats.Usable() == 0 {
		return nil, types.NewError(types.KindEmbeddingFailed, ErrEmbeddingUnavailable,
			"no searchable embeddings for the eligible documents")
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{ChunkID: r.ChunkID, Score: r.SimilarityScore}
	}
	sortHits(hits)
	return hits, nil
}

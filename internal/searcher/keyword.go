package searcher

import (
	"context"
	"fmt"

	"github.com/dshills/hybridrag/internal/storage"
)

// KeywordSearcher ranks candidate chunks by full-text relevance
type KeywordSearcher struct {
	store storage.Store
	limit int
}

// NewKeywordSearcher creates a keyword searcher keeping at most limit hits
func NewKeywordSearcher(store storage.Store, limit int) *KeywordSearcher {
	return &KeywordSearcher{store: store, limit: limit}
}

// Search returns hits sorted by relevance descending, ties by chunk id.
// Text without searchable terms yields no hits.
func (k *KeywordSearcher) Search(ctx context.Context, text string, candidates *storage.CandidateSet) ([]Hit, error) {
	results, err := k.store.SearchText(ctx, storage.TextQuery{
		Text:        text,
		DocumentIDs: candidates.DocumentIDs,
		Limit:       k.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{ChunkID: r.ChunkID, Score: r.BM25Score}
	}
	sortHits(hits)
	return hits, nil
}

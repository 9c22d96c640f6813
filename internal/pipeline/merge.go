package pipeline

import (
	"github.com/dshills/hybridrag/internal/searcher"
	"github.com/dshills/hybridrag/pkg/types"
)

// MergeResults unions per-fragment rankings. A chunk found by several
// fragments keeps the entry with its highest combined score. The union is
// sorted by combined score descending, ties by chunk id, and cut to limit.
func MergeResults(perFragment [][]types.SearchResult, limit int) []types.SearchResult {
	best := make(map[int64]types.SearchResult)
	for _, results := range perFragment {
		for _, r := range results {
			if cur, ok := best[r.ChunkID]; !ok || r.CombinedScore > cur.CombinedScore {
				best[r.ChunkID] = r
			}
		}
	}

	merged := make([]types.SearchResult, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	searcher.SortResults(merged)

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// SourcesOf returns one citation per result, in ranking order
func SourcesOf(results []types.SearchResult) []types.Source {
	sources := make([]types.Source, len(results))
	for i := range results {
		sources[i] = results[i].Source()
	}
	return sources
}

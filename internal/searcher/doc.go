// Package searcher implements hybrid retrieval over document chunks,
// combining vector similarity and keyword matching.
//
// A search for one query fragment runs in three steps:
//   - Candidates: resolve the completed documents a role owns or was granted
//   - Hybrid: rank the candidates semantically and by keyword, concurrently
//   - Fuse: merge both rankings with weighted Reciprocal Rank Fusion
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, searcher.DefaultConfig())
//
//	cands, err := s.Candidates(ctx, "analyst", nil)
//	if err != nil {
//	    return err // DocumentsUnavailable when nothing is visible
//	}
//
//	results, err := s.Hybrid(ctx, "Q3 revenue by region", queryVector, cands)
//	for _, r := range results {
//	    fmt.Printf("%s #%d (%.3f, %s)\n", r.Filename, r.ChunkIndex, r.CombinedScore, r.Provenance)
//	}
//
// # Reciprocal Rank Fusion
//
// Each chunk's fused score is
//
//	rrf(c) = w_sem/(K + rank_sem(c)) + w_kw/(K + rank_kw(c))
//
// with K = 60 and a missing rank contributing zero. CombinedScore divides by
// the best attainable score so a chunk ranked first by both signals scores 1.
//
// # Adaptive Weights
//
// Queries containing numbers or quoted phrases, and very short queries, are
// keyword-heavy (0.4 semantic, 0.6 keyword). Everything else is balanced
// (0.6 semantic, 0.4 keyword). Config.Weights pins a fixed pair instead.
//
// # Degradation
//
// If keyword search fails the fragment is ranked semantically alone and each
// result is tagged semantic-fallback. If no candidate has a usable embedding
// Hybrid returns an EmbeddingFailed error; KeywordOnly ranks by keyword alone
// and tags results keyword-fallback.
//
// # Determinism
//
// Inputs are re-sorted before fusion and every sort breaks ties by chunk id,
// so identical store contents always produce identical output.
package searcher

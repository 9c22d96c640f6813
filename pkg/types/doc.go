// Package types provides shared type definitions for the hybridrag engine.
//
// This package defines domain types used across multiple components,
// including documents, chunks, search results, cache entries and the typed
// error taxonomy returned at the query and ingest boundaries.
//
// # Core Types
//
// Document represents an ingested file with an owner role and a per-role
// visibility map. Only completed documents take part in retrieval:
//
//	doc := &types.Document{
//	    ID:        "q3-report",
//	    Filename:  "q3-report.pdf",
//	    OwnerRole: "finance",
//	    Status:    types.StatusCompleted,
//	    VisibleTo: map[string]bool{"analyst": true},
//	}
//	doc.VisibleFor("analyst") // true
//
// Chunk is a bounded, immutable slice of a document's text with an ordinal
// position and an optional embedding.
//
// # Search Results
//
// SearchResult carries both ranked signals (semantic and keyword) and the
// fused score, tagged with a Provenance describing which signals produced it:
//
//	result := &types.SearchResult{
//	    ChunkID:       42,
//	    CombinedScore: 0.81,
//	    Provenance:    types.ProvenanceHybrid,
//	}
//
// CombinedScore is normalized to the [0, 1] range.
//
// # Errors
//
// Error is the typed error surfaced to callers. Its message is sanitized;
// the underlying cause is reachable through errors.Unwrap for logging only.
//
//	if errors.Is(err, types.ErrDocumentsUnavailable) {
//	    // role has nothing to search
//	}
package types

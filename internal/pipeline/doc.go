// Package pipeline orchestrates question answering.
//
// A query moves through six stages:
//
//  1. The question is embedded and the semantic cache is checked. A hit for
//     the caller's role is returned at once with its similarity. Queries
//     restricted to a document scope skip the cache in both directions.
//  2. Eligible chunks are resolved for the role and the question is split
//     into fragments.
//  3. Each fragment is embedded and searched (semantic and keyword, fused)
//     concurrently with the others.
//  4. The per-fragment rankings are merged, keeping each chunk's best
//     combined score, and capped to the context limit.
//  5. The synthesizer answers from the merged context and is told to
//     address every fragment.
//  6. The answer is written to the cache. A failed write is logged only.
//
// Errors returned by Query are *types.Error values. An empty retrieval is
// not an error: the response has status no_relevant_content and no sources.
package pipeline

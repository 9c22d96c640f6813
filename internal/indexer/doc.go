// Package indexer ingests documents into the store and drives their lifecycle.
//
// The indexer chunks extracted text, persists the chunks, embeds them on a
// worker pool and attaches the vectors, advancing the document through
// processing, chunks_ready and completed.
//
// # Basic Usage
//
//	idx, err := indexer.New(store, chunker.New(chunker.Config{}), emb,
//	    indexer.Config{Workers: 4, BatchSize: 50},
//	    indexer.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer idx.Close()
//
//	result, err := idx.Ingest(ctx, indexer.IngestRequest{
//	    DocumentID: "handbook",
//	    Filename:   "handbook.pdf",
//	    OwnerRole:  "hr",
//	    VisibleTo:  []string{"staff"},
//	    Text:       text,
//	})
//
// # Ingestion Pipeline
//
//  1. Incremental Decision: compare the SHA-256 of the text with the stored
//     hash and skip completed documents whose content is unchanged
//  2. Register: upsert the document as processing with its visibility
//  3. Chunk & Store: split the text and replace the document's chunks in one
//     transaction, then mark it chunks_ready
//  4. Embed: embed chunk batches concurrently on an ants pool
//  5. Attach: store all vectors and mark the document completed in one
//     transaction
//
// Any failure after step 2 marks the document failed with the cause recorded
// in its error message. The returned error is a types.Error of kind
// ingestion_failed whose message does not include provider details. A later
// Ingest of the same id restarts the lifecycle.
//
// # Concurrency
//
// Different documents may be ingested concurrently. A second Ingest of a
// document that is still in flight is rejected with ErrIngestInProgress.
package indexer

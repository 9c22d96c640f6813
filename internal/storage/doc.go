// Package storage provides SQLite-based persistence for documents, chunks,
// embeddings and cached answers.
//
// The storage layer manages:
//   - Documents with owner role, visibility grants and lifecycle status
//   - Text chunks in document order
//   - Vector embeddings for chunks
//   - Full-text search indexes
//   - The semantic answer cache
//
// # Database Schema
//
// Tables:
//   - documents: Document metadata and status (processing, chunks_ready, completed, failed)
//   - document_visibility: Roles granted read access besides the owner
//   - chunks: Ordered text chunks per document
//   - chunks_fts: FTS5 full-text search index (external content on chunks)
//   - embeddings: Vector embeddings for chunks
//   - cache_entries: Cached answers, unique per (question, role)
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.hybridrag/hybridrag.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	set, err := db.EligibleChunks(ctx, "analyst", nil)
//
// # Transactions
//
// Ingestion writes a document's chunks atomically:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.DeleteChunksByDocument(ctx, doc.ID)
//	_ = tx.InsertChunks(ctx, chunks)
//
//	if err := tx.Commit(); err != nil {
//	    return err
//	}
//
// # Search
//
// SearchVector ranks chunks by cosine similarity and reports VectorStats so
// callers can tell an empty result from a corpus without usable embeddings.
// SearchText ranks chunks with FTS5 bm25(). Both are restricted to a set of
// document ids passed as a single JSON parameter.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite and computes cosine similarity in
// Go. Building with -tags sqlite_vec switches to github.com/mattn/go-sqlite3
// and pushes similarity into SQL via vec_distance_cosine.
//
// The PostgreSQL implementation lives in the postgres subpackage.
package storage

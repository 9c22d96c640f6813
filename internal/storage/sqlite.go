package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dshills/hybridrag/pkg/types"
)

// ErrNotFound is returned when a requested entity doesn't exist
var ErrNotFound = errors.New("not found")

// SQLiteStorage implements the Store interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// inTx runs fn in its own transaction
func (s *SQLiteStorage) inTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Document operations

// upsertDocumentWithQuerier is the internal implementation that uses a querier.
// Re-ingesting an existing id resets its lifecycle fields and visibility.
func (s *SQLiteStorage) upsertDocumentWithQuerier(ctx context.Context, q querier, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO documents (id, filename, owner_role, status, content_hash, chunk_count, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			owner_role = excluded.owner_role,
			status = excluded.status,
			content_hash = excluded.content_hash,
			chunk_count = excluded.chunk_count,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
		RETURNING created_at
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		doc.ID, doc.Filename, doc.OwnerRole, string(doc.Status), doc.ContentHash[:],
		doc.ChunkCount, nullString(doc.ErrorMessage), now, now,
	).Scan(&doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	doc.UpdatedAt = now

	return s.replaceVisibilityWithQuerier(ctx, q, doc.ID, doc.Roles())
}

func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *types.Document) error {
	return s.inTx(ctx, func(q querier) error {
		return s.upsertDocumentWithQuerier(ctx, q, doc)
	})
}

func (s *SQLiteStorage) replaceVisibilityWithQuerier(ctx context.Context, q querier, documentID string, roles []string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM document_visibility WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("failed to clear visibility: %w", err)
	}
	for _, role := range roles {
		if role == "" {
			continue
		}
		_, err := q.ExecContext(ctx,
			"INSERT INTO document_visibility (document_id, role) VALUES (?, ?) ON CONFLICT DO NOTHING",
			documentID, role)
		if err != nil {
			return fmt.Errorf("failed to grant visibility: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, documentID string) (*types.Document, error) {
	query := `
		SELECT id, filename, owner_role, status, content_hash, chunk_count, error_message, created_at, updated_at
		FROM documents
		WHERE id = ?
	`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, documentID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	visibility, err := s.loadVisibility(ctx, []string{doc.ID})
	if err != nil {
		return nil, err
	}
	doc.VisibleTo = visibility[doc.ID]
	return doc, nil
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	query := `
		SELECT id, filename, owner_role, status, content_hash, chunk_count, error_message, created_at, updated_at
		FROM documents
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var docs []*types.Document
	var ids []string
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
		ids = append(ids, doc.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	visibility, err := s.loadVisibility(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		doc.VisibleTo = visibility[doc.ID]
	}
	return docs, nil
}

func (s *SQLiteStorage) loadVisibility(ctx context.Context, documentIDs []string) (map[string]map[string]bool, error) {
	result := make(map[string]map[string]bool, len(documentIDs))
	if len(documentIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, role FROM document_visibility
		WHERE document_id IN (SELECT value FROM json_each(?))
	`, jsonList(documentIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load visibility: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var docID, role string
		if err := rows.Scan(&docID, &role); err != nil {
			return nil, err
		}
		if result[docID] == nil {
			result[docID] = make(map[string]bool)
		}
		result[docID][role] = true
	}
	return result, rows.Err()
}

// updateDocumentStatusWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) updateDocumentStatusWithQuerier(ctx context.Context, q querier, update StatusUpdate) error {
	if !update.Status.Valid() {
		return types.ErrInvalidStatus
	}
	result, err := q.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, chunk_count = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`, string(update.Status), update.ChunkCount, nullString(update.ErrorMessage), time.Now(), update.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) UpdateDocumentStatus(ctx context.Context, update StatusUpdate) error {
	return s.updateDocumentStatusWithQuerier(ctx, s.querier(), update)
}

func (s *SQLiteStorage) SetVisibility(ctx context.Context, documentID string, roles []string) error {
	return s.inTx(ctx, func(q querier) error {
		var id string
		err := q.QueryRowContext(ctx, "SELECT id FROM documents WHERE id = ?", documentID).Scan(&id)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return s.replaceVisibilityWithQuerier(ctx, q, documentID, roles)
	})
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, documentID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", documentID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Chunk operations

// insertChunksWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertChunksWithQuerier(ctx context.Context, q querier, chunks []*types.Chunk) error {
	query := `
		INSERT INTO chunks (document_id, chunk_index, content, content_hash, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	now := time.Now()
	for _, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return fmt.Errorf("invalid chunk %d: %w", chunk.ChunkIndex, err)
		}
		if chunk.ContentHash == ([32]byte{}) {
			chunk.ComputeHash()
		}
		err := q.QueryRowContext(ctx, query,
			chunk.DocumentID, chunk.ChunkIndex, chunk.Content, chunk.ContentHash[:], chunk.TokenCount, now,
		).Scan(&chunk.ID)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) InsertChunks(ctx context.Context, chunks []*types.Chunk) error {
	return s.inTx(ctx, func(q querier) error {
		return s.insertChunksWithQuerier(ctx, q, chunks)
	})
}

func (s *SQLiteStorage) ListChunksByDocument(ctx context.Context, documentID string) ([]*types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, content_hash, token_count
		FROM chunks
		WHERE document_id = ?
		ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chunks []*types.Chunk
	for rows.Next() {
		var chunk types.Chunk
		var hash []byte
		var tokens sql.NullInt64
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex, &chunk.Content, &hash, &tokens); err != nil {
			return nil, err
		}
		copy(chunk.ContentHash[:], hash)
		chunk.TokenCount = int(tokens.Int64)
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// deleteChunksByDocumentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteChunksByDocumentWithQuerier(ctx context.Context, q querier, documentID string) error {
	_, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	return s.deleteChunksByDocumentWithQuerier(ctx, s.querier(), documentID)
}

func (s *SQLiteStorage) GetChunks(ctx context.Context, chunkIDs []int64) ([]*ChunkRecord, error) {
	if len(chunkIDs) == 0 {
		return []*ChunkRecord{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.content_hash, c.token_count, d.filename
		FROM chunks c
		INNER JOIN documents d ON d.id = c.document_id
		WHERE c.id IN (SELECT value FROM json_each(?))
		ORDER BY c.id
	`, jsonList(chunkIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*ChunkRecord, 0, len(chunkIDs))
	for rows.Next() {
		var rec ChunkRecord
		var hash []byte
		var tokens sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.ChunkIndex, &rec.Content, &hash, &tokens, &rec.Filename); err != nil {
			return nil, err
		}
		copy(rec.ContentHash[:], hash)
		rec.TokenCount = int(tokens.Int64)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Candidate operations

// EligibleChunks returns the completed documents role owns or was granted,
// narrowed to scope when scope is non-empty, with their chunk ids.
func (s *SQLiteStorage) EligibleChunks(ctx context.Context, role string, scope []string) (*CandidateSet, error) {
	query := `
		SELECT d.id, c.id
		FROM documents d
		INNER JOIN chunks c ON c.document_id = d.id
		WHERE d.status = ?
		AND (d.owner_role = ? OR EXISTS (
			SELECT 1 FROM document_visibility v WHERE v.document_id = d.id AND v.role = ?
		))
	`
	args := []interface{}{string(types.StatusCompleted), role, role}
	if len(scope) > 0 {
		query += " AND d.id IN (SELECT value FROM json_each(?))"
		args = append(args, jsonList(scope))
	}
	query += " ORDER BY c.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	set := &CandidateSet{}
	seen := make(map[string]bool)
	for rows.Next() {
		var docID string
		var chunkID int64
		if err := rows.Scan(&docID, &chunkID); err != nil {
			return nil, err
		}
		if !seen[docID] {
			seen[docID] = true
			set.DocumentIDs = append(set.DocumentIDs, docID)
		}
		set.ChunkIDs = append(set.ChunkIDs, chunkID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(set.DocumentIDs)
	return set, nil
}

// Embedding operations

// upsertEmbeddingWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	if len(embedding.Vector) == 0 {
		return fmt.Errorf("empty embedding for chunk %d", embedding.ChunkID)
	}
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			created_at = excluded.created_at
		RETURNING id
	`
	now := time.Now()
	embedding.Dimension = len(embedding.Vector)
	err := q.QueryRowContext(ctx, query,
		embedding.ChunkID, serializeVector(embedding.Vector), embedding.Dimension,
		embedding.Provider, embedding.Model, now,
	).Scan(&embedding.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.querier(), embedding)
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, query VectorQuery) ([]VectorResult, VectorStats, error) {
	return searchVector(ctx, s.db, query)
}

func (s *SQLiteStorage) SearchText(ctx context.Context, query TextQuery) ([]TextResult, error) {
	return searchText(ctx, s.db, query)
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{
		Documents: make(map[types.DocumentStatus]int),
		Backend:   "sqlite-" + BuildMode,
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM documents GROUP BY status")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			_ = rows.Close()
			return nil, err
		}
		status.Documents[types.DocumentStatus(st)] = n
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&status.ChunksCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&status.EmbeddingsCount); err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM cache_entries").
		Scan(&status.CacheEntries, &status.CacheHits)
	if err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	err = s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		FTSIndexesBuilt:     true, // FTS indexes are created with migrations
	}

	return status, nil
}

// Transaction operations

func (t *sqliteTx) UpsertDocument(ctx context.Context, doc *types.Document) error {
	return t.storage.upsertDocumentWithQuerier(ctx, t.querier(), doc)
}

func (t *sqliteTx) UpdateDocumentStatus(ctx context.Context, update StatusUpdate) error {
	return t.storage.updateDocumentStatusWithQuerier(ctx, t.querier(), update)
}

func (t *sqliteTx) InsertChunks(ctx context.Context, chunks []*types.Chunk) error {
	return t.storage.insertChunksWithQuerier(ctx, t.querier(), chunks)
}

func (t *sqliteTx) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	return t.storage.deleteChunksByDocumentWithQuerier(ctx, t.querier(), documentID)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.querier(), embedding)
}

// Helpers

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*types.Document, error) {
	var doc types.Document
	var status string
	var hash []byte
	var errMsg sql.NullString
	var chunkCount sql.NullInt64
	err := row.Scan(&doc.ID, &doc.Filename, &doc.OwnerRole, &status, &hash,
		&chunkCount, &errMsg, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.Status = types.DocumentStatus(status)
	copy(doc.ContentHash[:], hash)
	doc.ChunkCount = int(chunkCount.Int64)
	doc.ErrorMessage = errMsg.String
	return &doc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// jsonList encodes a list for use with json_each, which keeps the statement
// at a single bound parameter regardless of list length.
func jsonList[T string | int64](values []T) string {
	if len(values) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(values)
	return string(b)
}

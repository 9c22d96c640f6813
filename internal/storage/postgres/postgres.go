// Package postgres implements storage.Store on PostgreSQL with the pgvector
// extension. Similarity runs in SQL with the <=> cosine distance operator and
// keyword ranking uses ts_rank_cd over a 'simple' text search configuration.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dshills/hybridrag/internal/storage"
	"github.com/dshills/hybridrag/pkg/types"
)

// Store implements storage.Store using a pgx connection pool
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// New connects to dsn and applies pending migrations
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := ApplyMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return &Store{pool: pool}, nil
}

// querier is implemented by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

func (s *Store) inTx(ctx context.Context, fn func(q querier) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(tx)
	})
}

// Document operations

func upsertDocument(ctx context.Context, q querier, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	now := time.Now()
	err := q.QueryRow(ctx, `
		INSERT INTO documents (id, filename, owner_role, status, content_hash, chunk_count, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $8)
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			owner_role = EXCLUDED.owner_role,
			status = EXCLUDED.status,
			content_hash = EXCLUDED.content_hash,
			chunk_count = EXCLUDED.chunk_count,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`, doc.ID, doc.Filename, doc.OwnerRole, string(doc.Status), doc.ContentHash[:],
		doc.ChunkCount, doc.ErrorMessage, now).Scan(&doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	doc.UpdatedAt = now
	return replaceVisibility(ctx, q, doc.ID, doc.Roles())
}

func replaceVisibility(ctx context.Context, q querier, documentID string, roles []string) error {
	if _, err := q.Exec(ctx, "DELETE FROM document_visibility WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("failed to clear visibility: %w", err)
	}
	for _, role := range roles {
		if role == "" {
			continue
		}
		_, err := q.Exec(ctx,
			"INSERT INTO document_visibility (document_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			documentID, role)
		if err != nil {
			return fmt.Errorf("failed to grant visibility: %w", err)
		}
	}
	return nil
}

func (s *Store) UpsertDocument(ctx context.Context, doc *types.Document) error {
	return s.inTx(ctx, func(q querier) error { return upsertDocument(ctx, q, doc) })
}

const documentColumns = `id, filename, owner_role, status, content_hash, chunk_count, COALESCE(error_message, ''), created_at, updated_at`

func scanDocument(row pgx.Row) (*types.Document, error) {
	var doc types.Document
	var status string
	var hash []byte
	err := row.Scan(&doc.ID, &doc.Filename, &doc.OwnerRole, &status, &hash,
		&doc.ChunkCount, &doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.Status = types.DocumentStatus(status)
	copy(doc.ContentHash[:], hash)
	return &doc, nil
}

func (s *Store) GetDocument(ctx context.Context, documentID string) (*types.Document, error) {
	doc, err := scanDocument(s.pool.QueryRow(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = $1", documentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
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

func (s *Store) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+documentColumns+" FROM documents ORDER BY id")
	if err != nil {
		return nil, err
	}
	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*types.Document, error) {
		return scanDocument(row)
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	visibility, err := s.loadVisibility(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		d.VisibleTo = visibility[d.ID]
	}
	return docs, nil
}

func (s *Store) loadVisibility(ctx context.Context, documentIDs []string) (map[string]map[string]bool, error) {
	result := make(map[string]map[string]bool, len(documentIDs))
	if len(documentIDs) == 0 {
		return result, nil
	}
	rows, err := s.pool.Query(ctx,
		"SELECT document_id, role FROM document_visibility WHERE document_id = ANY($1)", documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load visibility: %w", err)
	}
	defer rows.Close()
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

func updateDocumentStatus(ctx context.Context, q querier, update storage.StatusUpdate) error {
	if !update.Status.Valid() {
		return types.ErrInvalidStatus
	}
	tag, err := q.Exec(ctx, `
		UPDATE documents
		SET status = $1, chunk_count = $2, error_message = NULLIF($3, ''), updated_at = now()
		WHERE id = $4
	`, string(update.Status), update.ChunkCount, update.ErrorMessage, update.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateDocumentStatus(ctx context.Context, update storage.StatusUpdate) error {
	return updateDocumentStatus(ctx, s.pool, update)
}

func (s *Store) SetVisibility(ctx context.Context, documentID string, roles []string) error {
	return s.inTx(ctx, func(q querier) error {
		var id string
		err := q.QueryRow(ctx, "SELECT id FROM documents WHERE id = $1 FOR UPDATE", documentID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return replaceVisibility(ctx, q, documentID, roles)
	})
}

func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", documentID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Chunk operations

func insertChunks(ctx context.Context, q querier, chunks []*types.Chunk) error {
	for _, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return fmt.Errorf("invalid chunk %d: %w", chunk.ChunkIndex, err)
		}
		if chunk.ContentHash == ([32]byte{}) {
			chunk.ComputeHash()
		}
		err := q.QueryRow(ctx, `
			INSERT INTO chunks (document_id, chunk_index, content, content_hash, token_count)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, chunk.DocumentID, chunk.ChunkIndex, chunk.Content, chunk.ContentHash[:], chunk.TokenCount).Scan(&chunk.ID)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}
	return nil
}

func (s *Store) InsertChunks(ctx context.Context, chunks []*types.Chunk) error {
	return s.inTx(ctx, func(q querier) error { return insertChunks(ctx, q, chunks) })
}

func (s *Store) ListChunksByDocument(ctx context.Context, documentID string) ([]*types.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, content_hash, COALESCE(token_count, 0)
		FROM chunks WHERE document_id = $1 ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*types.Chunk, error) {
		var c types.Chunk
		var hash []byte
		if err := row.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &hash, &c.TokenCount); err != nil {
			return nil, err
		}
		copy(c.ContentHash[:], hash)
		return &c, nil
	})
}

func deleteChunksByDocument(ctx context.Context, q querier, documentID string) error {
	if _, err := q.Exec(ctx, "DELETE FROM chunks WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (s *Store) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	return deleteChunksByDocument(ctx, s.pool, documentID)
}

func (s *Store) GetChunks(ctx context.Context, chunkIDs []int64) ([]*storage.ChunkRecord, error) {
	if len(chunkIDs) == 0 {
		return []*storage.ChunkRecord{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.content_hash, COALESCE(c.token_count, 0), d.filename
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.id = ANY($1)
		ORDER BY c.id
	`, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*storage.ChunkRecord, error) {
		var rec storage.ChunkRecord
		var hash []byte
		if err := row.Scan(&rec.ID, &rec.DocumentID, &rec.ChunkIndex, &rec.Content, &hash, &rec.TokenCount, &rec.Filename); err != nil {
			return nil, err
		}
		copy(rec.ContentHash[:], hash)
		return &rec, nil
	})
}

// Candidate operations

func (s *Store) EligibleChunks(ctx context.Context, role string, scope []string) (*storage.CandidateSet, error) {
	query := `
		SELECT d.id, c.id
		FROM documents d
		JOIN chunks c ON c.document_id = d.id
		WHERE d.status = $1
		AND (d.owner_role = $2 OR EXISTS (
			SELECT 1 FROM document_visibility v WHERE v.document_id = d.id AND v.role = $2
		))
	`
	args := []any{string(types.StatusCompleted), role}
	if len(scope) > 0 {
		query += " AND d.id = ANY($3)"
		args = append(args, scope)
	}
	query += " ORDER BY c.id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve candidates: %w", err)
	}
	defer rows.Close()

	set := &storage.CandidateSet{}
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

func upsertEmbedding(ctx context.Context, q querier, e *storage.Embedding) error {
	if len(e.Vector) == 0 {
		return fmt.Errorf("empty embedding for chunk %d", e.ChunkID)
	}
	e.Dimension = len(e.Vector)
	err := q.QueryRow(ctx, `
		INSERT INTO embeddings (chunk_id, embedding, provider, model)
		VALUES ($1, $2::vector, $3, $4)
		ON CONFLICT (chunk_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			created_at = now()
		RETURNING id, created_at
	`, e.ChunkID, ToLiteral(e.Vector), e.Provider, e.Model).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

func (s *Store) UpsertEmbedding(ctx context.Context, embedding *storage.Embedding) error {
	return upsertEmbedding(ctx, s.pool, embedding)
}

// Search operations

func (s *Store) SearchVector(ctx context.Context, q storage.VectorQuery) ([]storage.VectorResult, storage.VectorStats, error) {
	var stats storage.VectorStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(e.id),
			COUNT(e.id) FILTER (WHERE vector_dims(e.embedding) <> $2)
		FROM chunks c
		LEFT JOIN embeddings e ON e.chunk_id = c.id
		WHERE c.document_id = ANY($1)
	`, q.DocumentIDs, len(q.Vector)).Scan(&stats.Chunks, &stats.Embedded, &stats.Mismatched)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to count embeddings: %w", err)
	}
	if stats.Usable() == 0 || q.Limit <= 0 {
		return []storage.VectorResult{}, stats, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT chunk_id, similarity FROM (
			SELECT c.id AS chunk_id, 1 - (e.embedding <=> $2::vector) AS similarity
			FROM chunks c
			JOIN embeddings e ON e.chunk_id = c.id
			WHERE c.document_id = ANY($1)
			AND vector_dims(e.embedding) = $3
		) ranked
		WHERE similarity >= $4
		ORDER BY similarity DESC, chunk_id ASC
		LIMIT $5
	`, q.DocumentIDs, ToLiteral(q.Vector), len(q.Vector), q.MinSimilarity, q.Limit)
	if err != nil {
		return nil, stats, fmt.Errorf("query vector search: %w", err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.VectorResult, error) {
		var r storage.VectorResult
		err := row.Scan(&r.ChunkID, &r.SimilarityScore)
		return r, err
	})
	return results, stats, err
}

func (s *Store) SearchText(ctx context.Context, q storage.TextQuery) ([]storage.TextResult, error) {
	tsquery := BuildTSQuery(q.Text)
	if tsquery == "" || q.Limit <= 0 {
		return []storage.TextResult{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, ts_rank_cd(to_tsvector('simple', c.content), query) AS rank
		FROM chunks c, to_tsquery('simple', $1) query
		WHERE c.document_id = ANY($2)
		AND to_tsvector('simple', c.content) @@ query
		ORDER BY rank DESC, c.id ASC
		LIMIT $3
	`, tsquery, q.DocumentIDs, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("query text search: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.TextResult, error) {
		var r storage.TextResult
		var rank float64
		if err := row.Scan(&r.ChunkID, &rank); err != nil {
			return r, err
		}
		r.BM25Score = NormalizeRank(rank)
		return r, nil
	})
}

// Answer cache operations

const cacheColumns = `id, question, role, answer, sources, hit_count, created_at, last_hit_at`

func scanCacheEntry(row pgx.Row, extra ...any) (*types.CacheEntry, error) {
	var e types.CacheEntry
	var sources []byte
	dest := append([]any{&e.ID, &e.Question, &e.Role, &e.Answer, &sources, &e.HitCount, &e.CreatedAt, &e.LastHitAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sources, &e.Sources); err != nil {
		return nil, fmt.Errorf("failed to decode sources: %w", err)
	}
	return &e, nil
}

func (s *Store) FindCacheEntry(ctx context.Context, role string, vector []float32, minSimilarity float64) (*types.CacheEntry, error) {
	var (
		similarity float64
		embedding  string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT `+cacheColumns+`, question_embedding::text, similarity FROM (
			SELECT *, 1 - (question_embedding <=> $2::vector) AS similarity
			FROM cache_entries
			WHERE role = $1 AND vector_dims(question_embedding) = $3
		) ranked
		WHERE similarity >= $4
		ORDER BY similarity DESC, created_at DESC, id DESC
		LIMIT 1
	`, role, ToLiteral(vector), len(vector), minSimilarity)
	entry, err := scanCacheEntry(row, &embedding, &similarity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	entry.Similarity = similarity
	if entry.Embedding, err = FromLiteral(embedding); err != nil {
		return nil, fmt.Errorf("failed to decode cached embedding: %w", err)
	}
	return entry, nil
}

func (s *Store) RecordCacheHit(ctx context.Context, entryID int64, at time.Time) (*types.CacheEntry, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE cache_entries SET hit_count = hit_count + 1, last_hit_at = $2
		WHERE id = $1
		RETURNING `+cacheColumns, entryID, at)
	entry, err := scanCacheEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record cache hit: %w", err)
	}
	return entry, nil
}

func (s *Store) UpsertCacheEntry(ctx context.Context, entry *types.CacheEntry) error {
	sources, err := json.Marshal(entry.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO cache_entries (question, role, question_embedding, answer, sources, hit_count, created_at, last_hit_at)
		VALUES ($1, $2, $3::vector, $4, $5, 1, now(), now())
		ON CONFLICT (question, role) DO UPDATE SET
			question_embedding = EXCLUDED.question_embedding,
			answer = EXCLUDED.answer,
			sources = EXCLUDED.sources,
			hit_count = cache_entries.hit_count + 1,
			last_hit_at = EXCLUDED.last_hit_at
		RETURNING `+cacheColumns,
		entry.Question, entry.Role, ToLiteral(entry.Embedding), entry.Answer, string(sources))
	stored, err := scanCacheEntry(row)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	stored.Embedding = entry.Embedding
	*entry = *stored
	return nil
}

func (s *Store) PurgeCache(ctx context.Context, lastHitBefore time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM cache_entries WHERE last_hit_at < $1", lastHitBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Status operations

func (s *Store) GetStatus(ctx context.Context) (*storage.Status, error) {
	status := &storage.Status{
		Documents: make(map[types.DocumentStatus]int),
		Backend:   "postgres",
	}

	rows, err := s.pool.Query(ctx, "SELECT status, COUNT(*) FROM documents GROUP BY status")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			rows.Close()
			return nil, err
		}
		status.Documents[types.DocumentStatus(st)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var size int64
	err = s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(*) FROM embeddings),
			(SELECT COUNT(*) FROM cache_entries),
			(SELECT COALESCE(SUM(hit_count), 0)::bigint FROM cache_entries),
			pg_database_size(current_database())
	`).Scan(&status.ChunksCount, &status.EmbeddingsCount, &status.CacheEntries, &status.CacheHits, &size)
	if err != nil {
		return nil, err
	}
	status.SizeMB = float64(size) / (1024 * 1024)

	status.Health = storage.HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		FTSIndexesBuilt:     true,
	}
	return status, nil
}

// Transactions

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Commit() error   { return t.tx.Commit(context.Background()) }
func (t *pgTx) Rollback() error { return t.tx.Rollback(context.Background()) }

func (t *pgTx) UpsertDocument(ctx context.Context, doc *types.Document) error {
	return upsertDocument(ctx, t.tx, doc)
}

func (t *pgTx) UpdateDocumentStatus(ctx context.Context, update storage.StatusUpdate) error {
	return updateDocumentStatus(ctx, t.tx, update)
}

func (t *pgTx) InsertChunks(ctx context.Context, chunks []*types.Chunk) error {
	return insertChunks(ctx, t.tx, chunks)
}

func (t *pgTx) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	return deleteChunksByDocument(ctx, t.tx, documentID)
}

func (t *pgTx) UpsertEmbedding(ctx context.Context, embedding *storage.Embedding) error {
	return upsertEmbedding(ctx, t.tx, embedding)
}

// Helpers

// ToLiteral formats a vector in pgvector's text input format
func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%g", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// FromLiteral parses pgvector's text form, e.g. "[1,-0.5,0.25]"
func FromLiteral(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("malformed vector literal %q", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return []float32{}, nil
	}
	parts := strings.Split(body, ",")
	v := make([]float32, len(parts))
	for i, p := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("malformed vector element %q: %w", p, err)
		}
		v[i] = float32(x)
	}
	return v, nil
}

// BuildTSQuery ORs the letter/digit terms of text into a to_tsquery expression
func BuildTSQuery(text string) string {
	return strings.Join(storage.QueryTerms(text), " | ")
}

// NormalizeRank maps a non-negative ts_rank_cd value onto [0, 1)
func NormalizeRank(rank float64) float64 {
	if rank <= 0 {
		return 0
	}
	return rank / (1 + rank)
}

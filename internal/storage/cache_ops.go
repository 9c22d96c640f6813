package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dshills/hybridrag/pkg/types"
)

// Answer cache operations. Timestamps are stored as unix nanoseconds so
// that recency comparisons are exact.

const cacheColumns = `id, question, role, question_embedding, answer, sources, hit_count, created_at, last_hit_at`

// FindCacheEntry returns the role's entry most similar to vector, or
// ErrNotFound when none reaches minSimilarity. Equal similarities resolve to
// the most recently created entry.
func (s *SQLiteStorage) FindCacheEntry(ctx context.Context, role string, vector []float32, minSimilarity float64) (*types.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+cacheColumns+" FROM cache_entries WHERE role = ? AND dimension = ?",
		role, len(vector))
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var best *types.CacheEntry
	for rows.Next() {
		entry, err := scanCacheEntry(rows)
		if err != nil {
			return nil, err
		}
		entry.Similarity = cosineSimilarity(vector, entry.Embedding)
		if entry.Similarity < minSimilarity {
			continue
		}
		if BetterCacheMatch(entry, best) {
			best = entry
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

// BetterCacheMatch reports whether a ranks ahead of b: higher similarity,
// then newer creation time, then higher id.
func BetterCacheMatch(a, b *types.CacheEntry) bool {
	if b == nil {
		return true
	}
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// RecordCacheHit increments the hit counter and refreshes last_hit_at in a
// single statement.
func (s *SQLiteStorage) RecordCacheHit(ctx context.Context, entryID int64, at time.Time) (*types.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE cache_entries
		SET hit_count = hit_count + 1, last_hit_at = ?
		WHERE id = ?
		RETURNING `+cacheColumns,
		at.UnixNano(), entryID)
	entry, err := scanCacheEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record cache hit: %w", err)
	}
	return entry, nil
}

// UpsertCacheEntry inserts a new entry with hit_count 1, or replaces the
// answer of the existing (question, role) entry and increments its hit_count.
func (s *SQLiteStorage) UpsertCacheEntry(ctx context.Context, entry *types.CacheEntry) error {
	sources, err := json.Marshal(entry.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}

	now := time.Now()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO cache_entries (question, role, question_embedding, dimension, answer, sources, hit_count, created_at, last_hit_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(question, role) DO UPDATE SET
			question_embedding = excluded.question_embedding,
			dimension = excluded.dimension,
			answer = excluded.answer,
			sources = excluded.sources,
			hit_count = cache_entries.hit_count + 1,
			last_hit_at = excluded.last_hit_at
		RETURNING `+cacheColumns,
		entry.Question, entry.Role, serializeVector(entry.Embedding), len(entry.Embedding),
		entry.Answer, string(sources), now.UnixNano(), now.UnixNano())

	stored, err := scanCacheEntry(row)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	*entry = *stored
	return nil
}

// PurgeCache removes entries not hit since lastHitBefore
func (s *SQLiteStorage) PurgeCache(ctx context.Context, lastHitBefore time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE last_hit_at < ?", lastHitBefore.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return result.RowsAffected()
}

func scanCacheEntry(row rowScanner) (*types.CacheEntry, error) {
	var entry types.CacheEntry
	var vector []byte
	var sources string
	var createdAt, lastHitAt int64
	err := row.Scan(&entry.ID, &entry.Question, &entry.Role, &vector, &entry.Answer,
		&sources, &entry.HitCount, &createdAt, &lastHitAt)
	if err != nil {
		return nil, err
	}
	entry.Embedding = deserializeVector(vector)
	entry.CreatedAt = time.Unix(0, createdAt)
	entry.LastHitAt = time.Unix(0, lastHitAt)
	if err := json.Unmarshal([]byte(sources), &entry.Sources); err != nil {
		return nil, fmt.Errorf("failed to decode sources: %w", err)
	}
	return &entry, nil
}

// Package cache stores synthesized answers keyed by question embedding so
// that semantically equivalent questions from the same role skip retrieval.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/hybridrag/internal/storage"
	"github.com/dshills/hybridrag/pkg/types"
)

// DefaultThreshold is the minimum cosine similarity for a cache hit
const DefaultThreshold = 0.85

// SemanticCache looks up and records answers per role
type SemanticCache struct {
	store     storage.Store
	threshold float64
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a SemanticCache.
type Option func(*SemanticCache)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *SemanticCache) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// WithThreshold sets the minimum similarity for a hit
func WithThreshold(threshold float64) Option {
	return func(c *SemanticCache) {
		if threshold > 0 {
			c.threshold = threshold
		}
	}
}

// WithClock overrides the time source used for hit timestamps
func WithClock(now func() time.Time) Option {
	return func(c *SemanticCache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a SemanticCache backed by store
func New(store storage.Store, opts ...Option) *SemanticCache {
	c := &SemanticCache{
		store:     store,
		threshold: DefaultThreshold,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "cache")
	return c
}

// Threshold returns the configured hit threshold
func (c *SemanticCache) Threshold() float64 {
	return c.threshold
}

// Lookup returns the role's best matching entry, or nil on a miss. A match
// has its hit count incremented and last hit time refreshed before it is
// returned. Entries of other roles are never considered.
func (c *SemanticCache) Lookup(ctx context.Context, embedding []float32, role string) (*types.CacheEntry, error) {
	if len(embedding) == 0 || role == "" {
		return nil, nil
	}

	match, err := c.store.FindCacheEntry(ctx, role, embedding, c.threshold)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	hit, err := c.store.RecordCacheHit(ctx, match.ID, c.now())
	if errors.Is(err, storage.ErrNotFound) {
		// purged between lookup and update
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("record cache hit: %w", err)
	}
	hit.Similarity = match.Similarity

	c.logger.Debug("cache hit",
		"role", role,
		"entry_id", hit.ID,
		"similarity", hit.Similarity,
		"hit_count", hit.HitCount)
	return hit, nil
}

// Store records an answer for (question, role). An existing entry for the
// same pair is replaced and its hit count incremented. Failures are
// CacheWriteFailed errors.
func (c *SemanticCache) Store(ctx context.Context, question string, embedding []float32, answer string, sources []types.Source, role string) (*types.CacheEntry, error) {
	question = strings.TrimSpace(question)
	if question == "" || role == "" || len(embedding) == 0 {
		return nil, types.NewError(types.KindCacheWriteFailed, nil, "cache entry requires question, role and embedding")
	}
	if sources == nil {
		sources = []types.Source{}
	}

	entry := &types.CacheEntry{
		Question:  question,
		Embedding: embedding,
		Answer:    answer,
		Sources:   sources,
		Role:      role,
	}
	if err := c.store.UpsertCacheEntry(ctx, entry); err != nil {
		return nil, types.NewError(types.KindCacheWriteFailed, err, "failed to store answer in cache")
	}
	return entry, nil
}

// Purge removes entries whose last hit is older than olderThan. A zero or
// negative duration removes nothing.
func (c *SemanticCache) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	removed, err := c.store.PurgeCache(ctx, c.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	if removed > 0 {
		c.logger.Info("cache purged", "removed", removed, "older_than", olderThan)
	}
	return removed, nil
}

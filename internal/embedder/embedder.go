package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedding is one vector with the provider and model that produced it.
// Vectors from different models are not comparable.
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
}

// EmbeddingRequest asks for the embedding of one text
type EmbeddingRequest struct {
	Text  string
	Model string // overrides the provider's model when set
}

// BatchEmbeddingRequest asks for the embeddings of several texts
type BatchEmbeddingRequest struct {
	Texts []string
	Model string // overrides the provider's model when set
}

// BatchEmbeddingResponse holds one embedding per requested text, in request order
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder turns text into vectors. Chunks and questions must be embedded
// by the same provider and model to be compared.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch embeds every text or fails as a whole
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	Dimension() int
	Provider() string
	Model() string
	Close() error
}

// DefaultCacheSize is the number of embeddings kept when no size is configured
const DefaultCacheSize = 10000

// CacheStats reports cache effectiveness
type CacheStats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// Cache is an in-memory LRU of embeddings keyed by model and text.
// Callers never share vector memory with the cache.
type Cache struct {
	entries *lru.Cache[string, *Embedding]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache creates a cache holding up to maxLen embeddings
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	entries, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		entries, _ = lru.New[string, *Embedding](DefaultCacheSize)
	}
	return &Cache{entries: entries}
}

// Get returns a copy of the embedding of text under model
func (c *Cache) Get(model, text string) (*Embedding, bool) {
	emb, ok := c.entries.Get(cacheKey(model, text))
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return emb.clone(), true
}

// Set stores a copy of emb as the embedding of text under model
func (c *Cache) Set(model, text string, emb *Embedding) {
	c.entries.Add(cacheKey(model, text), emb.clone())
}

// Size returns the number of cached embeddings
func (c *Cache) Size() int {
	return c.entries.Len()
}

// Stats returns the entry count and lookup counters
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Entries: c.entries.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// Clear empties the cache and resets its counters
func (c *Cache) Clear() {
	c.entries.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

func (e *Embedding) clone() *Embedding {
	out := *e
	out.Vector = append([]float32(nil), e.Vector...)
	return &out
}

// cacheKey scopes a text hash to the model that embedded it
func cacheKey(model, text string) string {
	return model + ":" + ComputeHash(text)
}

// ComputeHash returns the hex SHA-256 of text
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateRequest rejects empty text
func ValidateRequest(req EmbeddingRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest rejects empty batches and empty texts
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

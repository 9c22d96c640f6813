package embedder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ComputeHash(""))
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", ComputeHash("hello world"))
	assert.Equal(t, ComputeHash("test"), ComputeHash("test"))
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     EmbeddingRequest
		wantErr error
	}{
		{name: "valid request", req: EmbeddingRequest{Text: "test text"}},
		{name: "empty text", req: EmbeddingRequest{}, wantErr: ErrEmptyText},
		{name: "with model", req: EmbeddingRequest{Text: "test", Model: "custom-model"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateBatchRequest(t *testing.T) {
	assert.NoError(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", "b"}}))
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{}), ErrInvalidInput)

	err := ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", ""}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "index 1")
}

func TestCache(t *testing.T) {
	t.Run("get and set", func(t *testing.T) {
		cache := NewCache(3)

		_, ok := cache.Get("m", "missing")
		assert.False(t, ok)

		cache.Set("m", "refund policy", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3, Model: "m"})
		got, ok := cache.Get("m", "refund policy")
		require.True(t, ok)
		assert.Equal(t, 3, got.Dimension)
		assert.Equal(t, 1, cache.Size())
	})

	t.Run("keys are scoped by model", func(t *testing.T) {
		cache := NewCache(3)
		cache.Set("a", "text", &Embedding{Vector: []float32{1}})

		_, ok := cache.Get("b", "text")
		assert.False(t, ok)
	})

	t.Run("vectors are copied both ways", func(t *testing.T) {
		cache := NewCache(3)
		stored := &Embedding{Vector: []float32{1, 2}}
		cache.Set("m", "t", stored)
		stored.Vector[0] = 42

		got, _ := cache.Get("m", "t")
		assert.Equal(t, float32(1), got.Vector[0])
		got.Vector[0] = 99

		again, _ := cache.Get("m", "t")
		assert.Equal(t, float32(1), again.Vector[0])
	})

	t.Run("eviction on capacity", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("m", "one", &Embedding{})
		cache.Set("m", "two", &Embedding{})
		cache.Set("m", "three", &Embedding{})

		assert.Equal(t, 2, cache.Size())
		_, ok := cache.Get("m", "one")
		assert.False(t, ok, "least recently used entry is evicted")
		_, ok = cache.Get("m", "three")
		assert.True(t, ok)
	})

	t.Run("stats and clear", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("m", "t", &Embedding{})
		cache.Get("m", "t")
		cache.Get("m", "t")
		cache.Get("m", "other")

		assert.Equal(t, CacheStats{Entries: 1, Hits: 2, Misses: 1}, cache.Stats())

		cache.Clear()
		assert.Equal(t, CacheStats{}, cache.Stats())
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := NewCache(100)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					text := string(rune('a'+id)) + string(rune('a'+j%26))
					cache.Set("m", text, &Embedding{Vector: []float32{float32(id), float32(j)}})
					cache.Get("m", text)
				}
			}(i)
		}
		wg.Wait()
		assert.NotZero(t, cache.Size())
		stats := cache.Stats()
		assert.Equal(t, int64(1000), stats.Hits+stats.Misses)
	})
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(10)
	provider, err := NewLocalProvider(0, cache)
	require.NoError(t, err)

	t.Run("deterministic unit vectors", func(t *testing.T) {
		a, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "quarterly revenue report"})
		require.NoError(t, err)
		b, err := NewLocalProvider(0, nil)
		require.NoError(t, err)
		c, err := b.GenerateEmbedding(ctx, EmbeddingRequest{Text: "quarterly revenue report"})
		require.NoError(t, err)

		assert.Equal(t, a.Vector, c.Vector)
		assert.Len(t, a.Vector, LocalDimension)
		assert.InDelta(t, 1.0, squaredNorm(a.Vector), 1e-5)
		assert.Equal(t, ProviderLocal, a.Provider)
	})

	t.Run("shared vocabulary is more similar", func(t *testing.T) {
		q, _ := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "What was Q3 revenue?"})
		near, _ := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "Q3 revenue grew by ten percent"})
		far, _ := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "The cafeteria menu changes weekly"})

		assert.Greater(t, dot(q.Vector, near.Vector), dot(q.Vector, far.Vector))
	})

	t.Run("cached", func(t *testing.T) {
		before := cache.Size()
		_, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cache me"})
		require.NoError(t, err)
		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cache me"})
		require.NoError(t, err)
		assert.Equal(t, before+1, cache.Size())
	})

	t.Run("punctuation only text", func(t *testing.T) {
		emb, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "?!"})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, squaredNorm(emb.Vector), 1e-5)
	})

	t.Run("batch", func(t *testing.T) {
		resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"one", "two"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 2)
		assert.NotEqual(t, resp.Embeddings[0].Vector, resp.Embeddings[1].Vector)

		_, err = provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"one", ""}})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := provider.GenerateEmbedding(cctx, EmbeddingRequest{Text: "never embedded"})
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestNormalizeVector(t *testing.T) {
	assert.Equal(t, []float32{0.6, 0.8}, NormalizeVector([]float32{3, 4}))
	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func squaredNorm(v []float32) float64 {
	return dot(v, v)
}

package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalProvider embeds text without a network call by hashing its terms and
// term bigrams into a fixed number of signed buckets. Texts sharing
// vocabulary get similar vectors, which is enough for offline use and tests.
type LocalProvider struct {
	model     string
	dimension int
	cache     *Cache
}

// NewLocalProvider creates a local embedder with dimension buckets
// (LocalDimension when zero).
func NewLocalProvider(dimension int, cache *Cache) (*LocalProvider, error) {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{
		model:     fmt.Sprintf("local-hash-%d", dimension),
		dimension: dimension,
		cache:     cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if l.cache != nil {
		if emb, ok := l.cache.Get(l.model, req.Text); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    hashEmbed(req.Text, l.dimension),
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     l.model,
	}

	if l.cache != nil {
		l.cache.Set(l.model, req.Text, emb)
	}

	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// hashEmbed returns a unit vector of feature-hashed unigrams and bigrams
func hashEmbed(text string, dimension int) []float32 {
	terms := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(terms) == 0 {
		terms = []string{strings.TrimSpace(text)}
	}

	vector := make([]float32, dimension)
	add := func(feature string, weight float32) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum64()
		idx := int(sum % uint64(dimension))
		if sum&(1<<63) != 0 {
			weight = -weight
		}
		vector[idx] += weight
	}

	for i, t := range terms {
		add(t, 1)
		if i > 0 {
			add(terms[i-1]+" "+t, 0.5)
		}
	}
	return NormalizeVector(vector)
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}

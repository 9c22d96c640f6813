package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Environment variables consulted for API keys
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"

	// Endpoints
	JinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	OpenAIEndpoint = "https://api.openai.com/v1/embeddings"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// MaxBatchSize is the most texts sent in one request
	MaxBatchSize = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	DefaultTimeout = 30 * time.Second
)

// HTTPConfig configures an HTTP embedding provider. Zero fields take the
// provider's defaults.
type HTTPConfig struct {
	APIKey            string
	Model             string
	Endpoint          string
	Dimension         int
	RequestsPerSecond float64 // 0 disables throttling
	Timeout           time.Duration
	Retry             *RetryConfig
}

// HTTPProvider implements Embedder against an OpenAI-style /embeddings API.
// Jina and OpenAI share the request and response format.
type HTTPProvider struct {
	name       string
	apiKey     string
	model      string
	endpoint   string
	dimension  int
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
	cache      *Cache
}

// NewJinaProvider creates a new Jina AI embedder
func NewJinaProvider(cfg HTTPConfig, cache *Cache) (*HTTPProvider, error) {
	return newHTTPProvider(ProviderJina, EnvJinaAPIKey, JinaEndpoint, DefaultJinaModel, JinaDimension, cfg, cache)
}

// NewOpenAIProvider creates a new OpenAI embedder
func NewOpenAIProvider(cfg HTTPConfig, cache *Cache) (*HTTPProvider, error) {
	return newHTTPProvider(ProviderOpenAI, EnvOpenAIAPIKey, OpenAIEndpoint, DefaultOpenAIModel, OpenAIDimension, cfg, cache)
}

func newHTTPProvider(name, keyEnv, endpoint, model string, dimension int, cfg HTTPConfig, cache *Cache) (*HTTPProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s api key not set (%s)", ErrNoProviderEnabled, name, keyEnv)
	}
	if cfg.Endpoint != "" {
		endpoint = cfg.Endpoint
	}
	if cfg.Model != "" {
		model = cfg.Model
	}
	if cfg.Dimension > 0 {
		dimension = cfg.Dimension
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, int(cfg.RequestsPerSecond)))
	}

	return &HTTPProvider{
		name:      name,
		apiKey:    cfg.APIKey,
		model:     model,
		endpoint:  endpoint,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
		retry:   retry,
		cache:   cache,
	}, nil
}

func (p *HTTPProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

// GenerateBatch embeds texts, calling the API only for texts not in cache
func (p *HTTPProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	embeddings := make([]*Embedding, len(req.Texts))
	var missing []int
	for i, text := range req.Texts {
		if p.cache != nil {
			if emb, ok := p.cache.Get(model, text); ok {
				embeddings[i] = emb
				continue
			}
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for i, idx := range missing {
			texts[i] = req.Texts[idx]
		}

		fetched, err := retryWithBackoff(ctx, p.retry, func() ([]*Embedding, error) {
			return p.callAPI(ctx, texts, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrProviderFailed, p.name, err)
		}

		for i, idx := range missing {
			emb := fetched[i]
			if p.cache != nil {
				p.cache.Set(model, req.Texts[idx], emb)
			}
			embeddings[idx] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.name,
		Model:      model,
	}, nil
}

func (p *HTTPProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, permanent(fmt.Errorf("rate limiter: %w", err))
		}
	}

	reqBody := map[string]interface{}{
		"input": texts,
		"model": model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
		// Rate limits and server errors are transient
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, apiErr
		}
		return nil, permanent(apiErr)
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, permanent(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data)))
	}

	sort.Slice(apiResp.Data, func(i, j int) bool {
		return apiResp.Data[i].Index < apiResp.Data[j].Index
	})

	if apiResp.Model == "" {
		apiResp.Model = model
	}
	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		if len(data.Embedding) == 0 {
			return nil, permanent(fmt.Errorf("empty embedding at index %d", data.Index))
		}
		embeddings[i] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  p.name,
			Model:     apiResp.Model,
		}
	}

	return embeddings, nil
}

func (p *HTTPProvider) Dimension() int {
	return p.dimension
}

func (p *HTTPProvider) Provider() string {
	return p.name
}

func (p *HTTPProvider) Model() string {
	return p.model
}

func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

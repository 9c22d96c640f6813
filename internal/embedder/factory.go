package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider          string // jina, openai, local; auto-detected when empty
	APIKey            string // falls back to the provider's environment variable
	Model             string
	Endpoint          string
	Dimension         int
	CacheSize         int // 0 disables the embedding cache
	RequestsPerSecond float64
	Timeout           time.Duration
}

// New creates an embedder from cfg
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := DetectProvider(cfg.Provider)
	httpCfg := HTTPConfig{
		APIKey:            cfg.APIKey,
		Model:             cfg.Model,
		Endpoint:          cfg.Endpoint,
		Dimension:         cfg.Dimension,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.Timeout,
	}

	switch provider {
	case ProviderJina:
		if httpCfg.APIKey == "" {
			httpCfg.APIKey = os.Getenv(EnvJinaAPIKey)
		}
		return NewJinaProvider(httpCfg, cache)
	case ProviderOpenAI:
		if httpCfg.APIKey == "" {
			httpCfg.APIKey = os.Getenv(EnvOpenAIAPIKey)
		}
		return NewOpenAIProvider(httpCfg, cache)
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimension, cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider New would use.
// Priority:
// 1. the explicit provider name
// 2. JINA_API_KEY, then OPENAI_API_KEY
// 3. local
func DetectProvider(explicit string) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}

	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}

	return ProviderLocal
}

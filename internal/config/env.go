package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// applyEnv overlays HYBRIDRAG_* variables. Unset or empty variables leave
// the current value alone; malformed numbers are errors.
func (c *Config) applyEnv() error {
	p := envParser{}

	c.Storage.Driver = getenv("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.Path = getenv("STORAGE_PATH", c.Storage.Path)
	c.Storage.DSN = getenv("STORAGE_DSN", c.Storage.DSN)

	c.Embedding.Provider = getenv("EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.APIKey = getenv("EMBEDDING_API_KEY", c.Embedding.APIKey)
	c.Embedding.Model = getenv("EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.Endpoint = getenv("EMBEDDING_ENDPOINT", c.Embedding.Endpoint)
	c.Embedding.Dimension = p.intVar("EMBEDDING_DIMENSION", c.Embedding.Dimension)
	c.Embedding.CacheSize = p.intVar("EMBEDDING_CACHE_SIZE", c.Embedding.CacheSize)
	c.Embedding.RequestsPerSecond = p.floatVar("EMBEDDING_REQUESTS_PER_SECOND", c.Embedding.RequestsPerSecond)

	c.Synthesis.Provider = getenv("SYNTHESIS_PROVIDER", c.Synthesis.Provider)
	c.Synthesis.BaseURL = getenv("SYNTHESIS_BASE_URL", c.Synthesis.BaseURL)
	c.Synthesis.Model = getenv("SYNTHESIS_MODEL", c.Synthesis.Model)
	c.Synthesis.APIKey = getenv("SYNTHESIS_API_KEY", c.Synthesis.APIKey)
	c.Synthesis.Temperature = p.floatVar("SYNTHESIS_TEMPERATURE", c.Synthesis.Temperature)

	r := &c.Retrieval
	r.SemanticThreshold = p.floatVar("RETRIEVAL_SEMANTIC_THRESHOLD", r.SemanticThreshold)
	r.SemanticLimit = p.intVar("RETRIEVAL_SEMANTIC_LIMIT", r.SemanticLimit)
	r.KeywordLimit = p.intVar("RETRIEVAL_KEYWORD_LIMIT", r.KeywordLimit)
	r.FusionLimit = p.intVar("RETRIEVAL_FUSION_LIMIT", r.FusionLimit)
	r.ContextLimit = p.intVar("RETRIEVAL_CONTEXT_LIMIT", r.ContextLimit)
	r.RRFConstant = p.floatVar("RETRIEVAL_RRF_CONSTANT", r.RRFConstant)
	r.KeywordHeavyLength = p.intVar("RETRIEVAL_KEYWORD_HEAVY_LENGTH", r.KeywordHeavyLength)
	r.MinFragmentLength = p.intVar("RETRIEVAL_MIN_FRAGMENT_LENGTH", r.MinFragmentLength)
	r.CacheThreshold = p.floatVar("RETRIEVAL_CACHE_THRESHOLD", r.CacheThreshold)
	r.CacheTTL.Duration = p.durationVar("RETRIEVAL_CACHE_TTL", r.CacheTTL.Duration)
	r.KeywordOnlyFallback = p.boolVar("RETRIEVAL_KEYWORD_ONLY_FALLBACK", r.KeywordOnlyFallback)
	r.ProviderTimeout.Duration = p.durationVar("RETRIEVAL_PROVIDER_TIMEOUT", r.ProviderTimeout.Duration)

	c.Chunking.MaxSize = p.intVar("CHUNKING_MAX_SIZE", c.Chunking.MaxSize)
	c.Chunking.OverlapWords = p.intVar("CHUNKING_OVERLAP_WORDS", c.Chunking.OverlapWords)
	c.Chunking.MinSplitOffset = p.intVar("CHUNKING_MIN_SPLIT_OFFSET", c.Chunking.MinSplitOffset)

	c.Ingest.Workers = p.intVar("INGEST_WORKERS", c.Ingest.Workers)
	c.Ingest.BatchSize = p.intVar("INGEST_BATCH_SIZE", c.Ingest.BatchSize)

	c.Log.Level = getenv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getenv("LOG_FORMAT", c.Log.Format)

	return p.err
}

func getenv(k, fallback string) string {
	v := os.Getenv(EnvPrefix + k)
	if v == "" {
		return fallback
	}
	return v
}

// envParser keeps the first parse error so overrides read as one block
type envParser struct {
	err error
}

func (p *envParser) fail(k, v string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s%s=%q: %w", EnvPrefix, k, v, err)
	}
}

func (p *envParser) intVar(k string, fallback int) int {
	v := os.Getenv(EnvPrefix + k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(k, v, err)
		return fallback
	}
	return n
}

func (p *envParser) floatVar(k string, fallback float64) float64 {
	v := os.Getenv(EnvPrefix + k)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(k, v, err)
		return fallback
	}
	return f
}

func (p *envParser) boolVar(k string, fallback bool) bool {
	v := os.Getenv(EnvPrefix + k)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(k, v, err)
		return fallback
	}
	return b
}

func (p *envParser) durationVar(k string, fallback time.Duration) time.Duration {
	v := os.Getenv(EnvPrefix + k)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(k, v, err)
		return fallback
	}
	return d
}

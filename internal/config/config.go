// Package config loads hybridrag settings. Values are layered: built-in
// defaults, then a TOML file, then a .env file, then HYBRIDRAG_* environment
// variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "HYBRIDRAG_"

// Duration is a time.Duration written as a Go duration string in TOML
type Duration struct {
	time.Duration
}

// UnmarshalText parses strings such as "30s" or "720h"
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText writes the duration string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete application configuration
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Synthesis SynthesisConfig `toml:"synthesis"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Ingest    IngestConfig    `toml:"ingest"`
	Log       LogConfig       `toml:"log"`
}

// StorageConfig selects the backing store
type StorageConfig struct {
	Driver string `toml:"driver"` // sqlite or postgres
	Path   string `toml:"path"`   // sqlite database file
	DSN    string `toml:"dsn"`    // postgres connection string
}

// EmbeddingConfig configures the embedding provider
type EmbeddingConfig struct {
	Provider          string  `toml:"provider"` // jina, openai, local; empty auto-detects
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	Endpoint          string  `toml:"endpoint"`
	Dimension         int     `toml:"dimension"`
	CacheSize         int     `toml:"cache_size"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// SynthesisConfig configures answer synthesis
type SynthesisConfig struct {
	Provider    string  `toml:"provider"` // openai or extractive
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	APIKey      string  `toml:"api_key"`
	Temperature float64 `toml:"temperature"`
}

// RetrievalConfig holds the retrieval tunables
type RetrievalConfig struct {
	SemanticThreshold   float64  `toml:"semantic_threshold"`
	SemanticLimit       int      `toml:"semantic_limit"`
	KeywordLimit        int      `toml:"keyword_limit"`
	FusionLimit         int      `toml:"fusion_limit"`
	ContextLimit        int      `toml:"context_limit"`
	RRFConstant         float64  `toml:"rrf_constant"`
	KeywordHeavyLength  int      `toml:"keyword_heavy_length"`
	MinFragmentLength   int      `toml:"min_fragment_length"`
	CacheThreshold      float64  `toml:"cache_threshold"`
	CacheTTL            Duration `toml:"cache_ttl"` // 0 keeps entries forever
	KeywordOnlyFallback bool     `toml:"keyword_only_fallback"`
	ProviderTimeout     Duration `toml:"provider_timeout"`
}

// ChunkingConfig configures the chunker
type ChunkingConfig struct {
	MaxSize        int `toml:"max_size"`
	OverlapWords   int `toml:"overlap_words"`
	MinSplitOffset int `toml:"min_split_offset"`
}

// IngestConfig configures ingestion
type IngestConfig struct {
	Workers   int `toml:"workers"`
	BatchSize int `toml:"batch_size"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   filepath.Join(DefaultDir(), "hybridrag.db"),
		},
		Embedding: EmbeddingConfig{
			CacheSize:         10000,
			RequestsPerSecond: 5,
		},
		Synthesis: SynthesisConfig{
			Provider: "extractive",
			Model:    "gpt-4o-mini",
		},
		Retrieval: RetrievalConfig{
			SemanticThreshold:  0.15,
			SemanticLimit:      15,
			KeywordLimit:       15,
			FusionLimit:        15,
			ContextLimit:       25,
			RRFConstant:        60,
			KeywordHeavyLength: 20,
			MinFragmentLength:  3,
			CacheThreshold:     0.85,
			ProviderTimeout:    Duration{30 * time.Second},
		},
		Chunking: ChunkingConfig{
			MaxSize:        1000,
			OverlapWords:   40,
			MinSplitOffset: 100,
		},
		Ingest: IngestConfig{
			Workers:   4,
			BatchSize: 50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultDir returns ~/.hybridrag, or .hybridrag when the home directory is unknown
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hybridrag"
	}
	return filepath.Join(home, ".hybridrag")
}

// DefaultPath returns the default config file location
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.toml")
}

// Load builds the configuration. configPath must exist when given; when
// empty, DefaultPath is read if present. envFile names a .env file to load
// into the environment first; a missing file is ignored. Variables already
// set in the environment win over the .env file.
func Load(configPath, envFile string) (*Config, error) {
	cfg := Default()

	path := configPath
	if path == "" {
		path = DefaultPath()
	}
	if err := cfg.mergeFile(path); err != nil {
		if configPath != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays the TOML file at path onto cfg
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Save writes cfg as TOML with owner-only permissions
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Storage.Driver {
	case "sqlite":
		check(c.Storage.Path != "", "storage.path is required for sqlite")
	case "postgres":
		check(c.Storage.DSN != "", "storage.dsn is required for postgres")
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be sqlite or postgres, got %q", c.Storage.Driver))
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case "", "jina", "openai", "local":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider %q is not supported", c.Embedding.Provider))
	}
	check(c.Embedding.RequestsPerSecond >= 0, "embedding.requests_per_second must not be negative")

	switch c.Synthesis.Provider {
	case "extractive":
	case "openai":
		check(c.Synthesis.Model != "", "synthesis.model is required for openai")
	default:
		errs = append(errs, fmt.Errorf("synthesis.provider must be openai or extractive, got %q", c.Synthesis.Provider))
	}

	r := c.Retrieval
	check(r.SemanticThreshold >= 0 && r.SemanticThreshold <= 1, "retrieval.semantic_threshold must be in [0, 1]")
	check(r.CacheThreshold > 0 && r.CacheThreshold <= 1, "retrieval.cache_threshold must be in (0, 1]")
	check(r.SemanticLimit > 0 && r.KeywordLimit > 0 && r.FusionLimit > 0 && r.ContextLimit > 0,
		"retrieval limits must be positive")
	check(r.RRFConstant > 0, "retrieval.rrf_constant must be positive")
	check(r.ProviderTimeout.Duration > 0, "retrieval.provider_timeout must be positive")
	check(r.CacheTTL.Duration >= 0, "retrieval.cache_ttl must not be negative")

	check(c.Chunking.MaxSize > 0, "chunking.max_size must be positive")
	check(c.Ingest.Workers > 0, "ingest.workers must be positive")
	check(c.Ingest.BatchSize > 0 && c.Ingest.BatchSize <= 100, "ingest.batch_size must be in [1, 100]")

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not supported", c.Log.Level))
	}
	check(c.Log.Format == "text" || c.Log.Format == "json", "log.format must be text or json")

	return errors.Join(errs...)
}

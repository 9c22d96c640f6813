package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv isolates a test from HYBRIDRAG_* variables in the developer's shell
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"STORAGE_DRIVER", "STORAGE_PATH", "STORAGE_DSN", "EMBEDDING_PROVIDER",
		"SYNTHESIS_PROVIDER", "RETRIEVAL_CACHE_THRESHOLD", "RETRIEVAL_KEYWORD_ONLY_FALLBACK",
		"RETRIEVAL_PROVIDER_TIMEOUT", "INGEST_WORKERS", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(EnvPrefix+k, "")
	}
	t.Setenv("HOME", t.TempDir())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.85, cfg.Retrieval.CacheThreshold)
	assert.Equal(t, 25, cfg.Retrieval.ContextLimit)
	assert.Equal(t, 30*time.Second, cfg.Retrieval.ProviderTimeout.Duration)
	assert.False(t, cfg.Retrieval.KeywordOnlyFallback)
}

func TestLoad_NoFiles(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
}

func TestLoad_TOMLOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", `
[storage]
driver = "postgres"
dsn = "postgres://rag@localhost/rag"

[retrieval]
cache_threshold = 0.9
cache_ttl = "720h"
provider_timeout = "10s"
keyword_only_fallback = true

[log]
format = "json"
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 0.9, cfg.Retrieval.CacheThreshold)
	assert.Equal(t, 720*time.Hour, cfg.Retrieval.CacheTTL.Duration)
	assert.Equal(t, 10*time.Second, cfg.Retrieval.ProviderTimeout.Duration)
	assert.True(t, cfg.Retrieval.KeywordOnlyFallback)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched sections keep defaults
	assert.Equal(t, 15, cfg.Retrieval.SemanticLimit)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", "[log]\nlevel = \"warn\"\n")
	t.Setenv("HYBRIDRAG_LOG_LEVEL", "debug")
	t.Setenv("HYBRIDRAG_INGEST_WORKERS", "8")
	t.Setenv("HYBRIDRAG_RETRIEVAL_KEYWORD_ONLY_FALLBACK", "true")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Ingest.Workers)
	assert.True(t, cfg.Retrieval.KeywordOnlyFallback)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("HYBRIDRAG_SYNTHESIS_MODEL")
	t.Cleanup(func() { os.Unsetenv("HYBRIDRAG_SYNTHESIS_MODEL") })
	envFile := writeFile(t, ".env", "HYBRIDRAG_SYNTHESIS_MODEL=llama3\nHYBRIDRAG_LOG_LEVEL=error\n")
	// variables already set take precedence over .env
	t.Setenv("HYBRIDRAG_LOG_LEVEL", "warn")

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "llama3", cfg.Synthesis.Model)
	assert.Equal(t, "warn", cfg.Log.Level)

	_, err = Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "bad.toml", "[storage\n"), "")
	assert.Error(t, err)

	t.Setenv("HYBRIDRAG_INGEST_WORKERS", "many")
	_, err = Load("", "")
	assert.ErrorContains(t, err, "HYBRIDRAG_INGEST_WORKERS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }, "storage.driver"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }, "storage.dsn"},
		{"bad embedding provider", func(c *Config) { c.Embedding.Provider = "cohere" }, "embedding.provider"},
		{"bad synthesis provider", func(c *Config) { c.Synthesis.Provider = "claude" }, "synthesis.provider"},
		{"cache threshold zero", func(c *Config) { c.Retrieval.CacheThreshold = 0 }, "cache_threshold"},
		{"semantic threshold above one", func(c *Config) { c.Retrieval.SemanticThreshold = 1.5 }, "semantic_threshold"},
		{"zero context limit", func(c *Config) { c.Retrieval.ContextLimit = 0 }, "limits must be positive"},
		{"zero timeout", func(c *Config) { c.Retrieval.ProviderTimeout = Duration{} }, "provider_timeout"},
		{"batch too large", func(c *Config) { c.Ingest.BatchSize = 500 }, "batch_size"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Retrieval.CacheTTL = Duration{48 * time.Hour}
	cfg.Storage.Path = "/tmp/rag.db"

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

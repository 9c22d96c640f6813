package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name           string
		provider       string
		jinaKey        string
		openaiKey      string
		expectedResult string
	}{
		{name: "explicit jina provider", provider: "jina", expectedResult: ProviderJina},
		{name: "explicit openai provider", provider: "OpenAI", expectedResult: ProviderOpenAI},
		{name: "explicit local provider", provider: "local", jinaKey: "k", expectedResult: ProviderLocal},
		{name: "jina key present", jinaKey: "test-key", expectedResult: ProviderJina},
		{name: "openai key present", openaiKey: "test-key", expectedResult: ProviderOpenAI},
		{name: "both keys, jina takes precedence", jinaKey: "jina-key", openaiKey: "openai-key", expectedResult: ProviderJina},
		{name: "no provider, no keys - fallback to local", expectedResult: ProviderLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvJinaAPIKey, tt.jinaKey)
			t.Setenv(EnvOpenAIAPIKey, tt.openaiKey)
			assert.Equal(t, tt.expectedResult, DetectProvider(tt.provider))
		})
	}
}

func TestNew(t *testing.T) {
	t.Setenv(EnvJinaAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")

	t.Run("local by default", func(t *testing.T) {
		emb, err := New(Config{CacheSize: 10})
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, emb.Provider())
		assert.Equal(t, LocalDimension, emb.Dimension())
	})

	t.Run("local with custom dimension", func(t *testing.T) {
		emb, err := New(Config{Provider: "local", Dimension: 64})
		require.NoError(t, err)
		assert.Equal(t, 64, emb.Dimension())
	})

	t.Run("openai without key fails", func(t *testing.T) {
		_, err := New(Config{Provider: "openai"})
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("openai key from environment", func(t *testing.T) {
		t.Setenv(EnvOpenAIAPIKey, "sk-test")
		emb, err := New(Config{Provider: "openai", Model: "text-embedding-3-large", Dimension: 3072})
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, emb.Provider())
		assert.Equal(t, "text-embedding-3-large", emb.Model())
		assert.Equal(t, 3072, emb.Dimension())
	})

	t.Run("jina explicit key", func(t *testing.T) {
		emb, err := New(Config{Provider: "jina", APIKey: "jk"})
		require.NoError(t, err)
		assert.Equal(t, JinaDimension, emb.Dimension())
		assert.NoError(t, emb.Close())
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(Config{Provider: "cohere"})
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})
}

// Package embedder generates vector embeddings for document chunks and
// questions using various providers.
//
// Supported providers are Jina AI and OpenAI over HTTP, and a local
// feature-hashing provider that needs no network. All of them cache by
// content hash and support batching.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{CacheSize: 10000})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "What was Q3 revenue?",
//	})
//	fmt.Printf("Vector dimension: %d\n", len(result.Vector))
//
// # Provider Selection
//
// An empty Config.Provider is resolved by DetectProvider:
//
//  1. JINA_API_KEY set: Jina (jina-embeddings-v3, 1024 dimensions)
//  2. OPENAI_API_KEY set: OpenAI (text-embedding-3-small, 1536 dimensions)
//  3. otherwise: local (384 dimensions)
//
// # Throttling and Retries
//
// HTTP providers wait on a token bucket (Config.RequestsPerSecond) before
// each call. Network failures, 429 and 5xx responses are retried with
// exponential backoff (100ms doubling to 5s, 3 attempts). Other client
// errors fail immediately. Context cancellation stops retries.
//
// # Caching
//
// Embeddings are cached in an LRU keyed by model and SHA-256 of the text.
// Batches only send the texts that miss the cache. Cached vectors are
// returned as copies.
package embedder

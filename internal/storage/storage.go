package storage

import (
	"context"
	"time"

	"github.com/dshills/hybridrag/pkg/types"
)

// Store defines the interface for persisting documents, chunks, embeddings
// and cached answers, and for the ranking primitives retrieval runs on.
type Store interface {
	// Document operations
	UpsertDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, documentID string) (*types.Document, error)
	ListDocuments(ctx context.Context) ([]*types.Document, error)
	UpdateDocumentStatus(ctx context.Context, update StatusUpdate) error
	SetVisibility(ctx context.Context, documentID string, roles []string) error
	DeleteDocument(ctx context.Context, documentID string) error

	// Chunk operations
	InsertChunks(ctx context.Context, chunks []*types.Chunk) error
	ListChunksByDocument(ctx context.Context, documentID string) ([]*types.Chunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID string) error
	GetChunks(ctx context.Context, chunkIDs []int64) ([]*ChunkRecord, error)

	// Candidate operations
	EligibleChunks(ctx context.Context, role string, scope []string) (*CandidateSet, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error

	// Search operations, restricted to the chunks of the given documents
	SearchVector(ctx context.Context, query VectorQuery) ([]VectorResult, VectorStats, error)
	SearchText(ctx context.Context, query TextQuery) ([]TextResult, error)

	// Answer cache operations
	FindCacheEntry(ctx context.Context, role string, vector []float32, minSimilarity float64) (*types.CacheEntry, error)
	RecordCacheHit(ctx context.Context, entryID int64, at time.Time) (*types.CacheEntry, error)
	UpsertCacheEntry(ctx context.Context, entry *types.CacheEntry) error
	PurgeCache(ctx context.Context, lastHitBefore time.Time) (int64, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a write transaction covering the operations ingestion groups together
type Tx interface {
	Commit() error
	Rollback() error

	UpsertDocument(ctx context.Context, doc *types.Document) error
	UpdateDocumentStatus(ctx context.Context, update StatusUpdate) error
	InsertChunks(ctx context.Context, chunks []*types.Chunk) error
	DeleteChunksByDocument(ctx context.Context, documentID string) error
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
}

// StatusUpdate moves a document to a new lifecycle state
type StatusUpdate struct {
	DocumentID   string
	Status       types.DocumentStatus
	ChunkCount   int
	ErrorMessage string
}

// Embedding represents a vector embedding for a chunk
type Embedding struct {
	ID        int64
	ChunkID   int64
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// ChunkRecord is a chunk joined with its document's filename
type ChunkRecord struct {
	types.Chunk
	Filename string
}

// CandidateSet lists the documents and chunks a role may search
type CandidateSet struct {
	DocumentIDs []string
	ChunkIDs    []int64
}

// VectorQuery describes a similarity search over a set of documents
type VectorQuery struct {
	Vector        []float32
	DocumentIDs   []string
	MinSimilarity float64
	Limit         int
}

// TextQuery describes a full-text search over a set of documents
type TextQuery struct {
	Text        string
	DocumentIDs []string
	Limit       int
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	ChunkID         int64
	SimilarityScore float64
}

// VectorStats reports how many scoped chunks could take part in a vector search
type VectorStats struct {
	Chunks     int // chunks in scope
	Embedded   int // chunks with any embedding
	Mismatched int // embeddings whose dimension differs from the query
}

// Usable returns the number of chunks whose embedding matched the query dimension
func (s VectorStats) Usable() int {
	return s.Embedded - s.Mismatched
}

// TextResult represents a result from full-text search
type TextResult struct {
	ChunkID   int64
	BM25Score float64 // normalized to (0, 1], higher is better
}

// Status contains statistics about the store
type Status struct {
	Documents       map[types.DocumentStatus]int
	ChunksCount     int
	EmbeddingsCount int
	CacheEntries    int
	CacheHits       int64
	SizeMB          float64
	Backend         string
	Health          HealthStatus
}

// HealthStatus represents the health of the store
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	FTSIndexesBuilt     bool
}

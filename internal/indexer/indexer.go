package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/dshills/hybridrag/internal/chunker"
	"github.com/dshills/hybridrag/internal/embedder"
	"github.com/dshills/hybridrag/internal/storage"
	"github.com/dshills/hybridrag/pkg/types"
)

const (
	// DefaultWorkers is the embedding pool size when none is configured
	DefaultWorkers = 4

	// DefaultBatchSize is the number of chunks embedded per provider call
	DefaultBatchSize = 50
)

// ErrIngestInProgress is returned when the same document is already being ingested
var ErrIngestInProgress = errors.New("document is already being ingested")

// Indexer coordinates the ingestion pipeline: chunk -> store -> embed
type Indexer struct {
	store    storage.Store
	chunker  *chunker.Chunker
	embedder embedder.Embedder

	// Worker pool configuration
	pool      *ants.Pool
	batchSize int

	inFlight documentLocks
	logger   *slog.Logger
}

// Config contains configuration for the indexer
type Config struct {
	Workers   int // Size of the embedding worker pool (default: 4)
	BatchSize int // Chunks per embedding call (default: 50)
}

// Option configures an Indexer
type Option func(*Indexer)

// WithLogger sets the logger used for ingestion events
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Indexer) {
		if logger != nil {
			idx.logger = logger
		}
	}
}

// IngestRequest describes one document to ingest
type IngestRequest struct {
	DocumentID string // generated when empty
	Filename   string // defaults to DocumentID
	OwnerRole  string
	VisibleTo  []string
	Text       string
	Tabular    bool
}

// IngestResult reports the outcome of an ingest
type IngestResult struct {
	DocumentID string               `json:"document_id"`
	Status     types.DocumentStatus `json:"status"`
	ChunkCount int                  `json:"chunk_count"`
	Embedded   int                  `json:"embedded"`
	Skipped    bool                 `json:"skipped"`
	Duration   time.Duration        `json:"duration"`
}

// New creates a new Indexer. Close releases its worker pool.
func New(store storage.Store, ch *chunker.Chunker, emb embedder.Embedder, cfg Config, opts ...Option) (*Indexer, error) {
	if store == nil || ch == nil || emb == nil {
		return nil, errors.New("indexer requires a store, a chunker and an embedder")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding pool: %w", err)
	}

	idx := &Indexer{
		store:     store,
		chunker:   ch,
		embedder:  emb,
		pool:      pool,
		batchSize: cfg.BatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = idx.logger.With("component", "indexer")
	return idx, nil
}

// Close releases the worker pool. The indexer must not be used afterwards.
func (idx *Indexer) Close() {
	idx.pool.Release()
}

// Ingest chunks, stores and embeds a document, moving it through
// processing -> chunks_ready -> completed. Any failure after the document
// record exists leaves it in the failed state.
func (idx *Indexer) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	start := time.Now()

	req.DocumentID = strings.TrimSpace(req.DocumentID)
	req.OwnerRole = strings.TrimSpace(req.OwnerRole)
	if req.DocumentID == "" {
		req.DocumentID = uuid.NewString()
	}
	if req.Filename == "" {
		req.Filename = req.DocumentID
	}
	if req.OwnerRole == "" {
		return nil, types.NewError(types.KindInvalidInput, nil, "owner role is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, chunker.ErrEmptyText
	}

	release := idx.inFlight.tryAcquire(req.DocumentID)
	if release == nil {
		return nil, types.NewError(types.KindInvalidInput, ErrIngestInProgress,
			"document %q is already being ingested", req.DocumentID)
	}
	defer release()

	hash := sha256.Sum256([]byte(req.Text))

	// Check if the document has changed since its last successful ingest
	skip, err := idx.checkUnchanged(ctx, req.DocumentID, hash)
	if err != nil {
		return nil, types.NewError(types.KindIngestionFailed, err, "failed to read document %q", req.DocumentID)
	}
	if skip != nil {
		idx.logger.Debug("document unchanged, skipping", "document_id", req.DocumentID)
		skip.Duration = time.Since(start)
		return skip, nil
	}

	doc := &types.Document{
		ID:          req.DocumentID,
		Filename:    req.Filename,
		OwnerRole:   req.OwnerRole,
		VisibleTo:   visibility(req.VisibleTo),
		Status:      types.StatusProcessing,
		ContentHash: hash,
	}
	if err := idx.store.UpsertDocument(ctx, doc); err != nil {
		return nil, types.NewError(types.KindIngestionFailed, err, "failed to register document %q", req.DocumentID)
	}

	result, err := idx.ingest(ctx, doc, req)
	if err != nil {
		idx.markFailed(ctx, doc.ID, err)
		var typed *types.Error
		if errors.As(err, &typed) && typed.Kind == types.KindInvalidInput {
			return nil, err
		}
		return nil, types.NewError(types.KindIngestionFailed, err, "ingestion of document %q failed", doc.ID)
	}

	result.Duration = time.Since(start)
	idx.logger.Info("document ingested",
		"document_id", doc.ID,
		"chunks", result.ChunkCount,
		"embedded", result.Embedded,
		"duration", result.Duration)
	return result, nil
}

// ingest runs the stages after the document has been registered
func (idx *Indexer) ingest(ctx context.Context, doc *types.Document, req IngestRequest) (*IngestResult, error) {
	contents, err := idx.chunker.Split(req.Text, req.Tabular)
	if err != nil {
		return nil, err
	}

	chunks := make([]*types.Chunk, len(contents))
	for i, content := range contents {
		chunks[i] = &types.Chunk{
			DocumentID:  doc.ID,
			ChunkIndex:  i,
			Content:     content,
			ContentHash: chunker.ComputeChunkHash(content),
			TokenCount:  chunker.EstimateTokenCount(content),
		}
	}

	if err := idx.storeChunks(ctx, doc.ID, chunks); err != nil {
		return nil, err
	}

	vectors, err := idx.embedChunks(ctx, chunks)
	if err != nil {
		return nil, types.NewError(types.KindEmbeddingFailed, err, "failed to embed chunks")
	}

	if err := idx.storeEmbeddings(ctx, doc.ID, chunks, vectors); err != nil {
		return nil, err
	}

	return &IngestResult{
		DocumentID: doc.ID,
		Status:     types.StatusCompleted,
		ChunkCount: len(chunks),
		Embedded:   len(vectors),
	}, nil
}

// checkUnchanged returns a skip result when a completed document already holds this content
func (idx *Indexer) checkUnchanged(ctx context.Context, documentID string, hash [32]byte) (*IngestResult, error) {
	existing, err := idx.store.GetDocument(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		// New document, needs indexing
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.Status != types.StatusCompleted || existing.ContentHash != hash {
		return nil, nil
	}
	return &IngestResult{
		DocumentID: existing.ID,
		Status:     existing.Status,
		ChunkCount: existing.ChunkCount,
		Skipped:    true,
	}, nil
}

// storeChunks replaces the document's chunks in one transaction and marks it chunks_ready
func (idx *Indexer) storeChunks(ctx context.Context, documentID string, chunks []*types.Chunk) error {
	tx, err := idx.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.DeleteChunksByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}
	if err := tx.InsertChunks(ctx, chunks); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	err = tx.UpdateDocumentStatus(ctx, storage.StatusUpdate{
		DocumentID: documentID,
		Status:     types.StatusChunksReady,
		ChunkCount: len(chunks),
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// embedChunks embeds chunk batches on the worker pool and returns vectors in chunk order
func (idx *Indexer) embedChunks(ctx context.Context, chunks []*types.Chunk) ([]*embedder.Embedding, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([]*embedder.Embedding, len(chunks))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for start := 0; start < len(chunks); start += idx.batchSize {
		end := min(start+idx.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}

		wg.Add(1)
		submitErr := idx.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
			if err != nil {
				fail(err)
				return
			}
			if len(resp.Embeddings) != len(texts) {
				fail(fmt.Errorf("embedder returned %d vectors for %d chunks", len(resp.Embeddings), len(texts)))
				return
			}
			copy(vectors[start:end], resp.Embeddings)
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("failed to submit embedding batch: %w", submitErr))
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}

// storeEmbeddings attaches vectors to chunks and marks the document completed
func (idx *Indexer) storeEmbeddings(ctx context.Context, documentID string, chunks []*types.Chunk, vectors []*embedder.Embedding) error {
	tx, err := idx.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, chunk := range chunks {
		v := vectors[i]
		err := tx.UpsertEmbedding(ctx, &storage.Embedding{
			ChunkID:  chunk.ID,
			Vector:   v.Vector,
			Provider: v.Provider,
			Model:    v.Model,
		})
		if err != nil {
			return fmt.Errorf("failed to store embedding for chunk %d: %w", chunk.ChunkIndex, err)
		}
	}
	err = tx.UpdateDocumentStatus(ctx, storage.StatusUpdate{
		DocumentID: documentID,
		Status:     types.StatusCompleted,
		ChunkCount: len(chunks),
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// markFailed records the failure even when ctx has been cancelled. Only the
// sanitized message is persisted; the cause goes to the log.
func (idx *Indexer) markFailed(ctx context.Context, documentID string, cause error) {
	idx.logger.Error("ingestion failed", "document_id", documentID, "error", cause)

	err := idx.store.UpdateDocumentStatus(context.WithoutCancel(ctx), storage.StatusUpdate{
		DocumentID:   documentID,
		Status:       types.StatusFailed,
		ErrorMessage: failureMessage(cause),
	})
	if err != nil {
		idx.logger.Error("failed to record ingestion failure", "document_id", documentID, "error", err)
	}
}

// failureMessage returns the message of the outermost typed error, which never
// carries provider or driver text
func failureMessage(cause error) string {
	var typed *types.Error
	if errors.As(cause, &typed) {
		return typed.Error()
	}
	return "ingestion failed"
}

// SetVisibility replaces the roles, besides the owner, that may read a document
func (idx *Indexer) SetVisibility(ctx context.Context, documentID string, roles []string) error {
	if strings.TrimSpace(documentID) == "" {
		return types.NewError(types.KindInvalidInput, nil, "document id is required")
	}
	err := idx.store.SetVisibility(ctx, documentID, visibleRoles(roles))
	if errors.Is(err, storage.ErrNotFound) {
		return types.NewError(types.KindInvalidInput, err, "document %q not found", documentID)
	}
	if err != nil {
		return types.NewError(types.KindInternal, err, "failed to update visibility of %q", documentID)
	}
	return nil
}

// Delete removes a document with its chunks and embeddings
func (idx *Indexer) Delete(ctx context.Context, documentID string) error {
	err := idx.store.DeleteDocument(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return types.NewError(types.KindInvalidInput, err, "document %q not found", documentID)
	}
	if err != nil {
		return types.NewError(types.KindInternal, err, "failed to delete document %q", documentID)
	}
	idx.logger.Info("document deleted", "document_id", documentID)
	return nil
}

func visibleRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]bool, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

func visibility(roles []string) map[string]bool {
	m := make(map[string]bool, len(roles))
	for _, r := range visibleRoles(roles) {
		m[r] = true
	}
	return m
}

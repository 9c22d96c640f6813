package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/hybridrag/internal/cache"
	"github.com/dshills/hybridrag/internal/decomposer"
	"github.com/dshills/hybridrag/internal/embedder"
	"github.com/dshills/hybridrag/internal/searcher"
	"github.com/dshills/hybridrag/internal/storage"
	"github.com/dshills/hybridrag/internal/synthesizer"
	"github.com/dshills/hybridrag/pkg/types"
)

const (
	// DefaultContextLimit caps the merged chunks passed to synthesis
	DefaultContextLimit = 25

	// DefaultProviderTimeout bounds each embedding and synthesis call
	DefaultProviderTimeout = 30 * time.Second

	// NoRelevantContentAnswer is returned when retrieval finds nothing
	NoRelevantContentAnswer = "No relevant information was found in the documents available to you."
)

// Status describes how a query was answered
type Status string

const (
	StatusAnswered          Status = "answered"
	StatusNoRelevantContent Status = "no_relevant_content"
)

// QueryRequest is a question asked on behalf of a role
type QueryRequest struct {
	Question string
	Role     string
	// DocumentScope restricts retrieval to these documents when non-empty
	DocumentScope []string
}

// Response is the result of a query
type Response struct {
	RequestID  string         `json:"request_id"`
	Answer     string         `json:"answer"`
	Sources    []types.Source `json:"sources"`
	Cached     bool           `json:"cached"`
	Similarity float64        `json:"similarity,omitempty"`
	Status     Status         `json:"status"`
	Fragments  []string       `json:"fragments,omitempty"`
	// Degraded is set when a retrieval signal was unavailable
	Degraded bool `json:"degraded,omitempty"`
}

// Config holds orchestration settings. Zero fields take their defaults.
type Config struct {
	ContextLimit    int
	ProviderTimeout time.Duration
	// KeywordOnlyFallback answers from keyword search alone when no
	// embedding can be produced or used, instead of failing.
	KeywordOnlyFallback bool
}

// Dependencies are the collaborators a Pipeline runs on
type Dependencies struct {
	Embedder    embedder.Embedder
	Searcher    *searcher.Searcher
	Decomposer  decomposer.Decomposer
	Cache       *cache.SemanticCache
	Synthesizer synthesizer.Synthesizer
}

// Pipeline answers questions: cache lookup, decomposition, per-fragment
// hybrid retrieval, merge, synthesis and cache write.
type Pipeline struct {
	deps   Dependencies
	cfg    Config
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
	}
}

// New creates a Pipeline. Embedder, Searcher and Synthesizer are required;
// a nil Decomposer uses the separator decomposer and a nil Cache disables
// answer caching.
func New(deps Dependencies, cfg Config, opts ...Option) (*Pipeline, error) {
	if deps.Embedder == nil || deps.Searcher == nil || deps.Synthesizer == nil {
		return nil, errors.New("pipeline requires an embedder, a searcher and a synthesizer")
	}
	if deps.Decomposer == nil {
		deps.Decomposer = decomposer.NewSeparatorDecomposer()
	}
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = DefaultContextLimit
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}

	p := &Pipeline{deps: deps, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pipeline")
	return p, nil
}

// Query answers req. Failures are *types.Error values carrying a kind and a
// sanitized message; a query that finds nothing relevant is a successful
// response with StatusNoRelevantContent.
func (p *Pipeline) Query(ctx context.Context, req QueryRequest) (*Response, error) {
	start := time.Now()
	requestID := uuid.NewString()
	logger := p.logger.With("request_id", requestID, "role", req.Role)

	resp, err := p.query(ctx, req, requestID, logger)
	if err != nil {
		err = types.AsKind(err, types.KindInternal, "query failed")
		logger.Warn("query failed",
			"kind", types.KindOf(err),
			"retryable", types.IsRetryable(err),
			"error", errors.Unwrap(err),
			"duration", time.Since(start))
		return nil, err
	}

	logger.Info("query answered",
		"status", resp.Status,
		"cached", resp.Cached,
		"sources", len(resp.Sources),
		"duration", time.Since(start))
	return resp, nil
}

func (p *Pipeline) query(ctx context.Context, req QueryRequest, requestID string, logger *slog.Logger) (*Response, error) {
	question := strings.TrimSpace(req.Question)
	role := strings.TrimSpace(req.Role)
	if question == "" {
		return nil, types.NewError(types.KindInvalidInput, nil, "question is required")
	}
	if role == "" {
		return nil, types.NewError(types.KindInvalidInput, nil, "role is required")
	}

	// (a) embed and check the cache
	questionVec, err := p.embed(ctx, question)
	if err != nil {
		if !p.cfg.KeywordOnlyFallback {
			return nil, err
		}
		logger.Warn("question embedding failed, using keyword-only retrieval", "error", errors.Unwrap(err))
	}

	// Cache entries carry no document scope, so scoped questions bypass the cache
	useCache := questionVec != nil && p.deps.Cache != nil && len(req.DocumentScope) == 0
	if useCache {
		hit, err := p.deps.Cache.Lookup(ctx, questionVec, role)
		if err != nil {
			logger.Warn("cache lookup failed", "error", err)
		} else if hit != nil {
			return &Response{
				RequestID:  requestID,
				Answer:     hit.Answer,
				Sources:    nonNil(hit.Sources),
				Cached:     true,
				Similarity: hit.Similarity,
				Status:     StatusAnswered,
			}, nil
		}
	}

	// (b) candidates and decomposition
	cands, err := p.deps.Searcher.Candidates(ctx, role, req.DocumentScope)
	if err != nil {
		return nil, err
	}
	fragments := p.deps.Decomposer.Decompose(question)
	logger.Debug("question decomposed", "fragments", fragments, "candidates", len(cands.ChunkIDs))

	// (c) per-fragment retrieval
	perFragment, degraded, err := p.searchFragments(ctx, question, questionVec, fragments, cands, logger)
	if err != nil {
		return nil, err
	}

	// (d) merge
	merged := MergeResults(perFragment, p.cfg.ContextLimit)
	if len(merged) == 0 {
		return &Response{
			RequestID: requestID,
			Answer:    NoRelevantContentAnswer,
			Sources:   []types.Source{},
			Status:    StatusNoRelevantContent,
			Fragments: fragments,
			Degraded:  degraded,
		}, nil
	}

	// (e) synthesis
	answer, err := p.synthesize(ctx, question, fragments, merged)
	if err != nil {
		return nil, err
	}
	sources := SourcesOf(merged)

	// (f) cache write, never fatal
	if useCache {
		if _, err := p.deps.Cache.Store(ctx, question, questionVec, answer, sources, role); err != nil {
			logger.Warn("cache write failed",
				"kind", types.KindCacheWriteFailed,
				"error", errors.Unwrap(err))
		}
	}

	return &Response{
		RequestID: requestID,
		Answer:    answer,
		Sources:   sources,
		Status:    StatusAnswered,
		Fragments: fragments,
		Degraded:  degraded,
	}, nil
}

// searchFragments runs every fragment's retrieval concurrently and returns
// the per-fragment rankings in fragment order.
func (p *Pipeline) searchFragments(ctx context.Context, question string, questionVec []float32, fragments []string, cands *storage.CandidateSet, logger *slog.Logger) ([][]types.SearchResult, bool, error) {
	results := make([][]types.SearchResult, len(fragments))
	degradedFlags := make([]bool, len(fragments))

	g, gctx := errgroup.WithContext(ctx)
	for i, fragment := range fragments {
		g.Go(func() error {
			res, degraded, err := p.searchFragment(gctx, question, questionVec, fragment, cands, logger)
			if err != nil {
				return err
			}
			results[i] = res
			degradedFlags[i] = degraded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	degraded := false
	for i, res := range results {
		degraded = degraded || degradedFlags[i]
		for _, r := range res {
			if r.Provenance == types.ProvenanceSemanticFallback {
				degraded = true
			}
		}
	}
	return results, degraded, nil
}

func (p *Pipeline) searchFragment(ctx context.Context, question string, questionVec []float32, fragment string, cands *storage.CandidateSet, logger *slog.Logger) ([]types.SearchResult, bool, error) {
	if questionVec == nil {
		res, err := p.deps.Searcher.KeywordOnly(ctx, fragment, cands)
		return res, true, err
	}

	vec := questionVec
	if fragment != question {
		var err error
		vec, err = p.embed(ctx, fragment)
		if err != nil {
			if !p.cfg.KeywordOnlyFallback {
				return nil, false, err
			}
			logger.Warn("fragment embedding failed, using keyword-only retrieval",
				"fragment", fragment, "error", errors.Unwrap(err))
			res, err := p.deps.Searcher.KeywordOnly(ctx, fragment, cands)
			return res, true, err
		}
	}

	res, err := p.deps.Searcher.Hybrid(ctx, fragment, vec, cands)
	if err != nil && p.cfg.KeywordOnlyFallback && searcher.IsEmbeddingUnavailable(err) {
		logger.Warn("no usable embeddings, using keyword-only retrieval", "fragment", fragment)
		res, err = p.deps.Searcher.KeywordOnly(ctx, fragment, cands)
		return res, true, err
	}
	return res, false, err
}

// embed produces a query embedding under the provider timeout
func (p *Pipeline) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProviderTimeout)
	defer cancel()

	emb, err := p.deps.Embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return nil, types.NewError(types.KindEmbeddingFailed, err, "failed to embed the question")
	}
	if len(emb.Vector) == 0 {
		return nil, types.NewError(types.KindEmbeddingFailed, embedder.ErrProviderFailed, "embedding provider returned an empty vector")
	}
	return emb.Vector, nil
}

// synthesize calls the synthesizer under the provider timeout
func (p *Pipeline) synthesize(ctx context.Context, question string, fragments []string, results []types.SearchResult) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProviderTimeout)
	defer cancel()

	chunks := make([]synthesizer.ContextChunk, len(results))
	for i, r := range results {
		chunks[i] = synthesizer.ContextChunk{Filename: r.Filename, Content: r.Content}
	}

	answer, err := p.deps.Synthesizer.Synthesize(ctx, synthesizer.Request{
		Question:  question,
		Fragments: fragments,
		Chunks:    chunks,
	})
	if err != nil {
		return "", types.NewError(types.KindSynthesisFailed, err, "failed to synthesize an answer")
	}
	return answer, nil
}

func nonNil(sources []types.Source) []types.Source {
	if sources == nil {
		return []types.Source{}
	}
	return sources
}

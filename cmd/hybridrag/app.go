package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dshills/hybridrag/internal/cache"
	"github.com/dshills/hybridrag/internal/chunker"
	"github.com/dshills/hybridrag/internal/config"
	"github.com/dshills/hybridrag/internal/decomposer"
	"github.com/dshills/hybridrag/internal/embedder"
	"github.com/dshills/hybridrag/internal/indexer"
	"github.com/dshills/hybridrag/internal/pipeline"
	"github.com/dshills/hybridrag/internal/searcher"
	"github.com/dshills/hybridrag/internal/storage"
	"github.com/dshills/hybridrag/internal/storage/postgres"
	"github.com/dshills/hybridrag/internal/synthesizer"
)

// app holds the wired components shared by the commands
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    storage.Store
	embedder embedder.Embedder
	indexer  *indexer.Indexer
	cache    *cache.SemanticCache
	pipeline *pipeline.Pipeline
}

// newApp opens the store and builds the ingest and query components from cfg
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: store}
	if err := a.wire(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	cfg := a.cfg

	emb, err := embedder.New(embedder.Config{
		Provider:          cfg.Embedding.Provider,
		APIKey:            cfg.Embedding.APIKey,
		Model:             cfg.Embedding.Model,
		Endpoint:          cfg.Embedding.Endpoint,
		Dimension:         cfg.Embedding.Dimension,
		CacheSize:         cfg.Embedding.CacheSize,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		Timeout:           cfg.Retrieval.ProviderTimeout.Duration,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}
	a.embedder = emb
	a.logger.Debug("embedder ready", "provider", emb.Provider(), "model", emb.Model(), "dimension", emb.Dimension())

	chunks := chunker.New(chunker.Config{
		MaxSize:        cfg.Chunking.MaxSize,
		OverlapWords:   cfg.Chunking.OverlapWords,
		MinSplitOffset: cfg.Chunking.MinSplitOffset,
	})
	a.indexer, err = indexer.New(a.store, chunks, emb, indexer.Config{
		Workers:   cfg.Ingest.Workers,
		BatchSize: cfg.Ingest.BatchSize,
	}, indexer.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("failed to initialize indexer: %w", err)
	}

	synth, err := newSynthesizer(cfg.Synthesis, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize synthesizer: %w", err)
	}

	decomp := decomposer.NewSeparatorDecomposer()
	decomp.MinLength = cfg.Retrieval.MinFragmentLength

	a.cache = cache.New(a.store,
		cache.WithThreshold(cfg.Retrieval.CacheThreshold),
		cache.WithLogger(a.logger))

	srch := searcher.NewSearcher(a.store, searcher.Config{
		SemanticThreshold:  cfg.Retrieval.SemanticThreshold,
		SemanticLimit:      cfg.Retrieval.SemanticLimit,
		KeywordLimit:       cfg.Retrieval.KeywordLimit,
		FusionLimit:        cfg.Retrieval.FusionLimit,
		RRFConstant:        cfg.Retrieval.RRFConstant,
		KeywordHeavyLength: cfg.Retrieval.KeywordHeavyLength,
	}, searcher.WithLogger(a.logger))

	a.pipeline, err = pipeline.New(pipeline.Dependencies{
		Embedder:    emb,
		Searcher:    srch,
		Decomposer:  decomp,
		Cache:       a.cache,
		Synthesizer: synth,
	}, pipeline.Config{
		ContextLimit:        cfg.Retrieval.ContextLimit,
		ProviderTimeout:     cfg.Retrieval.ProviderTimeout.Duration,
		KeywordOnlyFallback: cfg.Retrieval.KeywordOnlyFallback,
	}, pipeline.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	return nil
}

// Close releases the components in reverse order of creation
func (a *app) Close() error {
	var errs []error
	if a.indexer != nil {
		a.indexer.Close()
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// openStore connects to the configured backend
func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "postgres":
		store, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return store, nil
	case "sqlite", "":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		store, err := storage.NewSQLiteStorage(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func newSynthesizer(cfg config.SynthesisConfig, logger *slog.Logger) (synthesizer.Synthesizer, error) {
	switch cfg.Provider {
	case "openai":
		return synthesizer.NewOpenAI(synthesizer.Config{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			Temperature: cfg.Temperature,
		}, synthesizer.WithLogger(logger))
	case "extractive", "":
		return synthesizer.NewExtractive(0), nil
	default:
		return nil, fmt.Errorf("unsupported synthesis provider %q", cfg.Provider)
	}
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{Version: "1.0.0", Up: schemaV1},
}

const schemaV1 = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    owner_role TEXT NOT NULL,
    status TEXT NOT NULL,
    content_hash BYTEA,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

CREATE TABLE IF NOT EXISTS document_visibility (
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    PRIMARY KEY (document_id, role)
);

CREATE INDEX IF NOT EXISTS idx_visibility_role ON document_visibility(role);

CREATE TABLE IF NOT EXISTS chunks (
    id BIGSERIAL PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    chunk_index INTEGER NOT NULL,
    content TEXT NOT NULL,
    content_hash BYTEA NOT NULL,
    token_count INTEGER,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE(document_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_fts ON chunks USING GIN (to_tsvector('simple', content));

CREATE TABLE IF NOT EXISTS embeddings (
    id BIGSERIAL PRIMARY KEY,
    chunk_id BIGINT NOT NULL UNIQUE REFERENCES chunks(id) ON DELETE CASCADE,
    embedding vector NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cache_entries (
    id BIGSERIAL PRIMARY KEY,
    question TEXT NOT NULL,
    role TEXT NOT NULL,
    question_embedding vector NOT NULL,
    answer TEXT NOT NULL,
    sources JSONB NOT NULL,
    hit_count BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL,
    last_hit_at TIMESTAMPTZ NOT NULL,
    UNIQUE(question, role)
);

CREATE INDEX IF NOT EXISTS idx_cache_role ON cache_entries(role);

CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	current := semver.MustParse("0.0.0")

	var exists bool
	err := pool.QueryRow(ctx, "SELECT to_regclass('schema_version') IS NOT NULL").Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	}
	if exists {
		var version string
		err = pool.QueryRow(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&version)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to read schema_version: %w", err)
		default:
			current, err = semver.NewVersion(version)
			if err != nil {
				return fmt.Errorf("invalid current schema version %s: %w", version, err)
			}
		}
	}

	for _, migration := range AllMigrations {
		version, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}
		if !current.LessThan(version) {
			continue
		}

		// No arguments: sent over the simple protocol, so the multi-statement script is allowed
		if _, err := pool.Exec(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		if _, err := pool.Exec(ctx, "INSERT INTO schema_version (version) VALUES ($1)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}
		current = version
	}
	return nil
}

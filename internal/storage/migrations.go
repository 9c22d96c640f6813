package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CurrentSchemaVersion is the version of the newest migration
const CurrentSchemaVersion = "1.0.0"

// Migration is one forward and reverse schema change
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations lists migrations in ascending version order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Documents table
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    owner_role TEXT NOT NULL,
    status TEXT NOT NULL,
    content_hash BLOB,
    chunk_count INTEGER DEFAULT 0,
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_role);

-- Per-role read grants in addition to the owner
CREATE TABLE IF NOT EXISTS document_visibility (
    document_id TEXT NOT NULL,
    role TEXT NOT NULL,
    PRIMARY KEY (document_id, role),
    FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_visibility_role ON document_visibility(role);

-- Chunks table
CREATE TABLE IF NOT EXISTS chunks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    content TEXT NOT NULL,
    content_hash BLOB NOT NULL,
    token_count INTEGER,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE,
    UNIQUE(document_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

-- Full-text search on chunks
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    content,
    content='chunks',
    content_rowid='id'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
    INSERT INTO chunks_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES ('delete', old.id, old.content);
END;

-- Embeddings table
CREATE TABLE IF NOT EXISTS embeddings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chunk_id INTEGER NOT NULL UNIQUE,
    vector BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (chunk_id) REFERENCES chunks(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_embeddings_chunk ON embeddings(chunk_id);

-- Answer cache, one entry per (question, role)
CREATE TABLE IF NOT EXISTS cache_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    question TEXT NOT NULL,
    role TEXT NOT NULL,
    question_embedding BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    answer TEXT NOT NULL,
    sources TEXT NOT NULL,
    hit_count INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    last_hit_at INTEGER NOT NULL,
    UNIQUE(question, role)
);

CREATE INDEX IF NOT EXISTS idx_cache_role ON cache_entries(role);
CREATE INDEX IF NOT EXISTS idx_cache_last_hit ON cache_entries(last_hit_at);
`

// schema_version is kept so the rollback can be recorded
const migrationV1Down = `
DROP TRIGGER IF EXISTS chunks_ad;
DROP TRIGGER IF EXISTS chunks_ai;

DROP TABLE IF EXISTS cache_entries;
DROP TABLE IF EXISTS embeddings;
DROP TABLE IF EXISTS chunks_fts;
DROP TABLE IF EXISTS chunks;
DROP TABLE IF EXISTS document_visibility;
DROP TABLE IF EXISTS documents;
`

// ApplyMigrations brings the schema up to CurrentSchemaVersion. Each pending
// migration runs with its version record in one transaction.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range AllMigrations {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", m.Version, err)
		}
		if current != nil && !current.LessThan(v) {
			continue
		}
		if err := runMigration(ctx, db, m.Version, m.Up, "INSERT INTO schema_version (version) VALUES (?)"); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
		}
		current = v
	}
	return nil
}

// RollbackMigration reverts the newest applied migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("no migrations to roll back")
	}

	for i := len(AllMigrations) - 1; i >= 0; i-- {
		m := AllMigrations[i]
		v, err := semver.NewVersion(m.Version)
		if err != nil || !v.Equal(current) {
			continue
		}
		if err := runMigration(ctx, db, m.Version, m.Down, "DELETE FROM schema_version WHERE version = ?"); err != nil {
			return fmt.Errorf("failed to roll back migration %s: %w", m.Version, err)
		}
		return nil
	}
	return fmt.Errorf("migration %s not found", current)
}

// schemaVersion returns the highest recorded version, or nil on a fresh database
func schemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var name string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var newest *semver.Version
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to read schema_version: %w", err)
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid recorded schema version %q: %w", raw, err)
		}
		if newest == nil || v.GreaterThan(newest) {
			newest = v
		}
	}
	return newest, rows.Err()
}

func runMigration(ctx context.Context, db *sql.DB, version, script, record string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		return err
	}
	return tx.Commit()
}

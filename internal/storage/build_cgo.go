//go:build sqlite_vec && !purego

package storage

// Built with:
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec sqlite_fts5" ./...
//
// Links github.com/mattn/go-sqlite3 so FTS5 ranking and chunk similarity run
// through the C library. Prefer this build for large document collections.

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverName = "sqlite3"

	// VectorExtensionAvailable is reported by the version command and status
	VectorExtensionAvailable = true

	BuildMode = "cgo"
)

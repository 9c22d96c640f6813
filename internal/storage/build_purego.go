//go:build purego || !sqlite_vec

package storage

// Default build. Uses modernc.org/sqlite, so no C toolchain is needed and the
// binary cross-compiles. Similarity over chunk vectors is computed in Go,
// which is fine for a few thousand documents.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered by the import above
	DriverName = "sqlite"

	VectorExtensionAvailable = false

	BuildMode = "purego"
)

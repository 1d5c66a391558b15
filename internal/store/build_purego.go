//go:build purego || !sqlite_vec

package store

// This file is compiled when building without CGO or without the sqlite_vec
// tag. It uses a pure Go SQLite implementation; similarity ranking happens
// in Go.
//
// Build command:
//   CGO_ENABLED=0 go build -tags "purego" ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if a SQL-level vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)

//go:build sqlite_vec
// +build sqlite_vec

package storage

// Compiled when building with CGO and the sqlite_vec tag. Query distances are
// computed in SQL with vec_distance_cosine from the sqlite-vec extension.
// mattn/go-sqlite3 does not ship sqlite-vec: it must be registered with the
// driver beforehand (for example via sqlite_vec.Auto() from
// github.com/asg017/sqlite-vec-go-bindings/cgo in the main package, or a
// system libsqlite3 built with it). NewSQLiteStore checks for the function
// and ranks in Go when it is missing.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "sqlite_vec" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates the build may use sqlite-vec when registered
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

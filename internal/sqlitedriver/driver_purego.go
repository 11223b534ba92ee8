//go:build !cgo_sqlite

// Package sqlitedriver registers the sqlite/database-sql driver this
// module uses and exposes its registered name, so callers never
// hard-code a driver string that only one of the two build
// configurations actually satisfies.
//
// Default build: modernc.org/sqlite, a cgo-free pure-Go driver — the
// right choice for cross-compiled deploys with no C toolchain available.
package sqlitedriver

import (
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver name registered for this build.
const DriverName = "sqlite"

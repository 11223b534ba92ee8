//go:build cgo_sqlite

// Built with `-tags cgo_sqlite` on hosts where cgo and a C toolchain are
// available: mattn/go-sqlite3 wraps the reference C implementation
// directly, trading the pure-Go build's portability for broader
// extension/pragma support.
package sqlitedriver

import (
	_ "github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver name registered for this build.
const DriverName = "sqlite3"

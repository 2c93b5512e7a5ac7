// Package sqlstore implements the store contracts on database/sql.
//
// Two dialects are supported: PostgreSQL (github.com/lib/pq) for production
// and SQLite (modernc.org/sqlite) for development, examples, and tests. The
// SQL text is shared; the dialect layer rewrites placeholders and row-locking
// clauses. Callers import the driver they use:
//
//	_ "github.com/lib/pq"        // DialectPostgres
//	_ "modernc.org/sqlite"       // DialectSQLite
//
// Timestamps persist as unix-millisecond BIGINT columns so both drivers scan
// identically; NULL maps to the zero time.
//
// All multi-step mutations (rotation, failure recording, skip increments) run
// inside explicit transactions owned by this package; no ambient transaction
// state exists.
package sqlstore

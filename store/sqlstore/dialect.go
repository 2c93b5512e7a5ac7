package sqlstore

import "strconv"

// Dialect selects the SQL flavor of the backing database.
type Dialect int

const (
	// DialectSQLite targets modernc.org/sqlite (driver name "sqlite").
	DialectSQLite Dialect = iota
	// DialectPostgres targets github.com/lib/pq (driver name "postgres").
	DialectPostgres
)

// String returns the database/sql driver name for the dialect.
func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	default:
		return "sqlite"
	}
}

// rebind rewrites ? placeholders to the dialect's form. Queries in this
// package never contain a literal question mark outside parameter position.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	buf := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			buf = append(buf, query[i])
			continue
		}
		n++
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(n), 10)
	}
	return string(buf)
}

// forUpdate returns the row-locking suffix for read-modify-write selects.
// SQLite has no FOR UPDATE; its single-writer connection serializes instead.
func (d Dialect) forUpdate() string {
	if d == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

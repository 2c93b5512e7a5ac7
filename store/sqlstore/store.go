package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/insano70/bcos-sub014/store"
)

// Store owns the database handle and hands out the per-concern views that
// implement store.TokenStore, store.SessionStore, and store.SecurityStore.
type Store struct {
	db *sql.DB
	d  Dialect
}

// New wraps an already opened database handle.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, d: dialect}
}

// Open opens the database for the dialect and wraps it. The matching driver
// must be imported by the caller. SQLite handles are capped to a single
// connection: the driver serializes writers anyway, and :memory: databases
// exist per connection.
func Open(dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.String(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	return New(db, dialect), nil
}

// Tokens returns the refresh-token view.
func (s *Store) Tokens() *TokenStore {
	return &TokenStore{db: s.db, d: s.d}
}

// Sessions returns the session view.
func (s *Store) Sessions() *SessionStore {
	return &SessionStore{db: s.db, d: s.d}
}

// Security returns the account-security view.
func (s *Store) Security() *SecurityStore {
	return &SecurityStore{db: s.db, d: s.d}
}

// DB exposes the underlying handle for lifecycle management.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports backend liveness.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// runInTx executes fn inside a transaction, rolling back on error or panic.
func runInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// timeMS converts a time to its unix-milli column value, NULL for zero.
func timeMS(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

// msTime converts a nullable unix-milli column back to a time.
func msTime(v sql.NullInt64) time.Time {
	if !v.Valid || v.Int64 == 0 {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

// textOrEmpty unwraps a nullable text column.
func textOrEmpty(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

// nullText converts an optional string to its column value, NULL for empty.
func nullText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

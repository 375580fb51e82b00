// Package store persists prompt templates in Postgres. It is the optional
// database tier behind templates.PostgresSource and the `clearbound prompts`
// commands; the request pipeline never writes to it.
//
// Dependency rule: store imports database/sql and lib/pq only. It never
// imports api, generate, templates, or worker.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound is returned when no template exists at a path.
var ErrNotFound = errors.New("store: template not found")

// Store holds a *sql.DB and the (quoted) table the templates live in. The
// operation file (templates.go) attaches methods to this type.
type Store struct {
	// pool is the raw connection pool, used both for single reads and to begin
	// transactions.
	pool *sql.DB

	// table is already quoted with pq.QuoteIdentifier and safe to splice.
	table string
}

// New creates a Store from a live connection pool. The pool must already be
// open and verified (e.g. via PingContext) before calling New.
func New(pool *sql.DB, table string) *Store {
	if table == "" {
		table = "prompt_templates"
	}
	return &Store{pool: pool, table: pq.QuoteIdentifier(table)}
}

// Open connects to dsn with the lib/pq driver, verifies the connection, and
// returns a Store. The caller owns Close.
func Open(ctx context.Context, dsn, table string) (*Store, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return New(pool, table), nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.pool.Close() }

// Migrate creates the template table when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			path       TEXT        PRIMARY KEY,
			body       TEXT        NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table))
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// txFunc receives a transaction and returns an error. Returning a non-nil
// error causes withTx to roll back automatically.
type txFunc func(ctx context.Context, tx *sql.Tx) error

// withTx begins a transaction, passes it to fn, and commits on success or
// rolls back on any error (including panics).
//
// Serializable isolation is used because PutTemplate reads the current body
// before deciding whether to write.
func (s *Store) withTx(ctx context.Context, fn txFunc) error {
	tx, err := s.pool.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	// Roll back on panic so the connection is never left in a broken state.
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // re-panic after rollback
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: fn error: %w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Template is one stored prompt body.
type Template struct {
	Path      string
	Body      string
	UpdatedAt time.Time
}

// GetTemplate returns the template stored at path, or ErrNotFound.
func (s *Store) GetTemplate(ctx context.Context, path string) (Template, error) {
	t := Template{Path: path}
	err := s.pool.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT body, updated_at FROM %s WHERE path = $1`, s.table), path,
	).Scan(&t.Body, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	if err != nil {
		return Template{}, fmt.Errorf("store: get template %q: %w", path, err)
	}
	return t, nil
}

// ListTemplates returns every stored template ordered by path.
func (s *Store) ListTemplates(ctx context.Context) ([]Template, error) {
	rows, err := s.pool.QueryContext(ctx,
		fmt.Sprintf(`SELECT path, body, updated_at FROM %s ORDER BY path`, s.table))
	if err != nil {
		return nil, fmt.Errorf("store: list templates: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.Path, &t.Body, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list templates: %w", err)
	}
	return out, nil
}

// PutTemplate writes body at path and reports whether anything changed.
// An identical body leaves updated_at untouched so cached ETags stay valid.
//
// Steps (all in one transaction):
//  1. Lock the existing row, if any.
//  2. Return early when the body is unchanged.
//  3. Upsert the new body with a fresh updated_at.
func (s *Store) PutTemplate(ctx context.Context, path, body string) (Template, bool, error) {
	var (
		out     Template
		changed bool
	)
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// ── Step 1: lock ─────────────────────────────────────────────────────
		var current Template
		err := tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT body, updated_at FROM %s WHERE path = $1 FOR UPDATE`, s.table), path,
		).Scan(&current.Body, &current.UpdatedAt)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("store: lock template %q: %w", path, err)

		// ── Step 2: no-op ────────────────────────────────────────────────────
		case current.Body == body:
			current.Path = path
			out = current
			return nil
		}

		// ── Step 3: upsert ───────────────────────────────────────────────────
		out = Template{Path: path, Body: body}
		if err := tx.QueryRowContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (path, body, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (path) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
			RETURNING updated_at`, s.table), path, body,
		).Scan(&out.UpdatedAt); err != nil {
			return fmt.Errorf("store: upsert template %q: %w", path, err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return Template{}, false, err
	}
	return out, changed, nil
}

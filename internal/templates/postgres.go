package templates

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/useclearbound-netizen/clearbound-v2/internal/store"
)

// TemplateReader is the read side of store.Store.
type TemplateReader interface {
	GetTemplate(ctx context.Context, path string) (store.Template, error)
}

// PostgresSource reads templates from the database. The row's updated_at
// serves as the ETag.
type PostgresSource struct {
	db TemplateReader
}

// NewPostgresSource wraps a template reader.
func NewPostgresSource(db TemplateReader) *PostgresSource {
	return &PostgresSource{db: db}
}

// Fetch implements Source.
func (s *PostgresSource) Fetch(ctx context.Context, path, etag string) (Document, error) {
	path, err := CheckPath(path)
	if err != nil {
		return Document{}, err
	}
	t, err := s.db.GetTemplate(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return Document{}, fmt.Errorf("templates: postgres: %w", err)
	}
	tag := strconv.FormatInt(t.UpdatedAt.UnixNano(), 36)
	if etag != "" && etag == tag {
		return Document{ETag: tag}, ErrNotModified
	}
	if len(t.Body) > MaxBytes {
		return Document{}, ErrTooLarge
	}
	return Document{Body: t.Body, ETag: tag}, nil
}

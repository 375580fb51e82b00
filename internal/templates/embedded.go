package templates

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
)

//go:embed prompts/v2/*.prompt.md
var builtin embed.FS

// EmbeddedSource serves the templates compiled into the binary. It is the
// last link of the chain so generation still works without a prompt repo.
type EmbeddedSource struct {
	fsys fs.FS
}

// NewEmbeddedSource returns the built-in source.
func NewEmbeddedSource() *EmbeddedSource {
	return &EmbeddedSource{fsys: builtin}
}

// Fetch implements Source. Embedded bodies never change, so they carry no
// ETag and never answer not-modified.
func (s *EmbeddedSource) Fetch(_ context.Context, path, _ string) (Document, error) {
	path, err := CheckPath(path)
	if err != nil {
		return Document{}, err
	}
	b, err := fs.ReadFile(s.fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return Document{}, fmt.Errorf("templates: embedded: %w", err)
	}
	return Document{Body: string(b)}, nil
}

// Builtin lists the embedded templates by path.
func Builtin() (map[string]string, error) {
	out := map[string]string{}
	err := fs.WalkDir(builtin, BasePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := fs.ReadFile(builtin, path)
		if err != nil {
			return err
		}
		out[path] = string(b)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("templates: list builtin: %w", err)
	}
	return out, nil
}

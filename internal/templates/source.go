// Package templates supplies prompt templates to the generation pipeline.
//
// A Loader sits in front of one or more Sources (GitHub raw, Postgres, the
// embedded defaults) and an injected Cache. Concurrent loads of the same path
// share one fetch, and a stale cached body is served when a refresh fails.
package templates

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// BasePath is the directory every built-in template lives under.
const BasePath = "prompts/v2"

// Template names used by the orchestrator.
const (
	Message = "message"
	Email   = "email"
	Bundle  = "bundle"
	Insight = "insight"
)

// MaxBytes caps a single template body.
const MaxBytes = 250_000

var (
	// ErrNotModified is returned by a Source when the caller's ETag still
	// matches. The Loader keeps its cached body.
	ErrNotModified = errors.New("templates: not modified")
	// ErrEmpty means a source answered with an empty body and nothing usable
	// was cached (PROMPT_EMPTY).
	ErrEmpty = errors.New("templates: empty template")
	// ErrNotFound means no source holds the path.
	ErrNotFound = errors.New("templates: not found")
	// ErrTooLarge means a body exceeded MaxBytes.
	ErrTooLarge = errors.New("templates: template too large")
	// ErrInvalidPath rejects traversal and absolute paths.
	ErrInvalidPath = errors.New("templates: invalid path")
)

// Document is one fetched template.
type Document struct {
	Body string
	ETag string
}

// Source fetches a template body by path. When etag is non-empty and the
// source can tell the body is unchanged it returns ErrNotModified.
type Source interface {
	Fetch(ctx context.Context, path, etag string) (Document, error)
}

// PathFor returns the repository path of a named template.
func PathFor(name string) string {
	return BasePath + "/" + name + ".prompt.md"
}

// CheckPath rejects empty, absolute, and parent-relative paths.
func CheckPath(path string) (string, error) {
	p := strings.TrimSpace(path)
	switch {
	case p == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	case strings.Contains(p, ".."):
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	case strings.HasPrefix(p, "/"), strings.HasPrefix(p, `\`):
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return p, nil
}

// ─── CHAIN ────────────────────────────────────────────────────────────────────

// Chain tries each source in order and returns the first success. A
// not-modified answer stops the chain like a success does.
type Chain []Source

// Fetch implements Source.
func (c Chain) Fetch(ctx context.Context, path, etag string) (Document, error) {
	var errs []error
	for _, s := range c {
		if s == nil {
			continue
		}
		doc, err := s.Fetch(ctx, path, etag)
		if err == nil || errors.Is(err, ErrNotModified) {
			return doc, err
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return Document{}, errors.Join(errs...)
}

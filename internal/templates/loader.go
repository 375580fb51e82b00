package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshTimeout bounds one shared fetch through the whole chain, GitHub
// retries included. It is independent of any single caller's deadline.
const refreshTimeout = 15 * time.Second

// Loader resolves template paths through a Source with caching.
type Loader struct {
	src    Source
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewLoader returns a Loader. A nil cache gets the defaults (80 entries, 5m).
func NewLoader(src Source, cache *Cache, logger *slog.Logger) *Loader {
	if cache == nil {
		cache = NewCache(0, 0)
	}
	return &Loader{src: src, cache: cache, logger: logger}
}

// Load returns the template at path.
//
//  1. A fresh cached body is returned without I/O.
//  2. Otherwise one fetch per path runs (concurrent callers share it), sending
//     the cached ETag when there is one.
//  3. Not-modified refreshes the cached entry's timestamp.
//  4. On fetch failure a cached body, however stale, is returned instead.
//
// The shared fetch does not inherit the cancellation of whichever caller
// started it; each caller stops waiting when its own ctx is done.
func (l *Loader) Load(ctx context.Context, path string) (string, error) {
	path, err := CheckPath(path)
	if err != nil {
		return "", err
	}
	if e, fresh, ok := l.cache.Get(path); ok && fresh && e.Body != "" {
		return e.Body, nil
	}

	ch := l.group.DoChan(path, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return l.refresh(fctx, path)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("templates: load %s: %w", path, ctx.Err())
	}
}

func (l *Loader) refresh(ctx context.Context, path string) (string, error) {
	cached, _, hasCached := l.cache.Get(path)

	doc, err := l.src.Fetch(ctx, path, cached.ETag)
	switch {
	case errors.Is(err, ErrNotModified) && cached.Body != "":
		if doc.ETag == "" {
			doc.ETag = cached.ETag
		}
		l.cache.Put(path, Entry{Body: cached.Body, ETag: doc.ETag})
		return cached.Body, nil

	case err != nil:
		if hasCached && cached.Body != "" {
			l.logger.Warn("templates: refresh failed, serving stale copy",
				"path", path,
				"error", err,
			)
			return cached.Body, nil
		}
		return "", fmt.Errorf("templates: load %s: %w", path, err)
	}

	body := doc.Body
	if strings.TrimSpace(body) == "" {
		body = cached.Body
	}
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("templates: load %s: %w", path, ErrEmpty)
	}
	l.cache.Put(path, Entry{Body: body, ETag: doc.ETag})
	return body, nil
}

// LoadNamed is Load(PathFor(name)).
func (l *Loader) LoadNamed(ctx context.Context, name string) (string, error) {
	return l.Load(ctx, PathFor(name))
}

package templates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	githubRawBase   = "https://raw.githubusercontent.com"
	githubTimeout   = 4500 * time.Millisecond
	githubAttempts  = 2
	githubSnippetSz = 200
)

var safeRef = regexp.MustCompile(`^[A-Za-z0-9._\-/]+$`)

// GitHubSource fetches templates from raw.githubusercontent.com.
type GitHubSource struct {
	repo       string
	ref        string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	backoff    func(attempt int) time.Duration
}

// NewGitHubSource returns a source reading repo (owner/name) at ref.
// The ref must match [A-Za-z0-9._-/]+.
func NewGitHubSource(repo, ref string) (*GitHubSource, error) {
	repo = strings.TrimSpace(repo)
	if repo == "" {
		return nil, errors.New("templates: PROMPTS_REPO missing")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = "main"
	}
	if !safeRef.MatchString(ref) {
		return nil, fmt.Errorf("templates: PROMPTS_REF invalid: %q", ref)
	}
	return &GitHubSource{
		repo:       repo,
		ref:        ref,
		baseURL:    githubRawBase,
		httpClient: &http.Client{},
		timeout:    githubTimeout,
		backoff:    func(i int) time.Duration { return time.Duration(120+i*180) * time.Millisecond },
	}, nil
}

// WithBaseURL points the source at a different host. Used in tests.
func (s *GitHubSource) WithBaseURL(u string) *GitHubSource {
	s.baseURL = strings.TrimRight(u, "/")
	return s
}

// WithTimeout overrides the per-attempt timeout.
func (s *GitHubSource) WithTimeout(d time.Duration) *GitHubSource {
	s.timeout = d
	return s
}

// WithBackoff overrides the pause between attempts.
func (s *GitHubSource) WithBackoff(f func(attempt int) time.Duration) *GitHubSource {
	s.backoff = f
	return s
}

// URL returns the raw URL for path.
func (s *GitHubSource) URL(path string) string {
	return fmt.Sprintf("%s/%s/%s/%s", s.baseURL, s.repo, s.ref, path)
}

// Fetch implements Source. Timeouts and 429/502/503/504 are retried once.
func (s *GitHubSource) Fetch(ctx context.Context, path, etag string) (Document, error) {
	path, err := CheckPath(path)
	if err != nil {
		return Document{}, err
	}
	url := s.URL(path)

	var lastErr error
	for i := 0; i < githubAttempts; i++ {
		doc, err := s.fetchOnce(ctx, url, etag)
		if err == nil || errors.Is(err, ErrNotModified) {
			return doc, err
		}
		lastErr = err
		if i == githubAttempts-1 || !retryable(err) {
			break
		}
		select {
		case <-ctx.Done():
			return Document{}, fmt.Errorf("templates: fetch %s: %w", path, ctx.Err())
		case <-time.After(s.backoff(i)):
		}
	}
	return Document{}, lastErr
}

func (s *GitHubSource) fetchOnce(ctx context.Context, url, etag string) (Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Document{}, fmt.Errorf("templates: build request: %w", err)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("templates: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	newTag := resp.Header.Get("ETag")
	if resp.StatusCode == http.StatusNotModified {
		return Document{ETag: newTag}, ErrNotModified
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBytes+1))
	if err != nil {
		return Document{}, fmt.Errorf("templates: read %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > githubSnippetSz {
			snippet = snippet[:githubSnippetSz]
		}
		return Document{}, &FetchError{Status: resp.StatusCode, Snippet: snippet}
	}
	if len(body) > MaxBytes {
		return Document{}, ErrTooLarge
	}
	return Document{Body: string(body), ETag: newTag}, nil
}

// FetchError is a non-200, non-304 answer from a remote source.
type FetchError struct {
	Status  int
	Snippet string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("templates: PROMPT_FETCH_FAILED %d %s", e.Status, e.Snippet)
}

func retryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		switch fe.Status {
		case http.StatusTooManyRequests, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var ne net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())
}

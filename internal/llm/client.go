// Package llm defines the text-generation collaborator and its provider
// clients. The orchestrator depends only on Generator; which provider sits
// behind it is decided in main.go.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ─── CONTRACT ─────────────────────────────────────────────────────────────────

// Tier selects which configured model serves a request.
type Tier string

const (
	TierDefault  Tier = "default"
	TierHighRisk Tier = "high_risk"
	TierInsight  Tier = "insight"
)

// Models maps tiers to provider model names. Empty entries fall back to Default.
type Models struct {
	Default  string
	HighRisk string
	Insight  string
}

// For returns the model name for tier t.
func (m Models) For(t Tier) string {
	switch {
	case t == TierHighRisk && m.HighRisk != "":
		return m.HighRisk
	case t == TierInsight && m.Insight != "":
		return m.Insight
	default:
		return m.Default
	}
}

// Request is one generation call.
type Request struct {
	Tier        Tier
	System      string
	User        string
	Temperature float64
	// Timeout bounds the whole call. Zero means the client default.
	Timeout   time.Duration
	RequestID string
}

// Generator produces raw text for a system+user instruction pair. The text is
// expected to be a single JSON object, but Generator does not parse it.
//
// Implementations must be safe to call concurrently. Errors are one of:
// ErrTimeout (wrapped), ErrEmpty (wrapped), or *UpstreamError.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ─── ERRORS ───────────────────────────────────────────────────────────────────

var (
	// ErrTimeout means the call exceeded its deadline. It is never retried.
	ErrTimeout = errors.New("llm: generation timed out")
	// ErrEmpty means the provider answered but returned no text.
	ErrEmpty = errors.New("llm: empty response")
)

// UpstreamError is a transport or provider failure.
type UpstreamError struct {
	Provider string
	Status   int // HTTP status when known, else 0
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: upstream: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: upstream: %s", e.Provider, e.Message)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// classify maps a transport error into the package's error contract.
func classify(ctx context.Context, provider string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%s: %w", provider, ErrTimeout)
	}
	return &UpstreamError{Provider: provider, Err: err}
}

// withTimeout applies req.Timeout, or def when unset.
func withTimeout(ctx context.Context, req Request, def time.Duration) (context.Context, context.CancelFunc) {
	d := req.Timeout
	if d <= 0 {
		d = def
	}
	return context.WithTimeout(ctx, d)
}

// ─── OUTPUT HELPERS ───────────────────────────────────────────────────────────

// StripFences removes a surrounding markdown code fence that models sometimes
// add despite being asked for bare JSON.
func StripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```JSON")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}

// defaultTimeout applies when a Request carries none.
const defaultTimeout = 22 * time.Second

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 1 << 20

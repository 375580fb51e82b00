package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Fallback wraps two Generators. It calls the primary first and, if that
// fails with an upstream error, logs the failure and tries the secondary.
//
// Timeouts are never retried on the secondary: a timed-out call has already
// used the request's budget. Empty responses are likewise returned as-is.
type Fallback struct {
	primary   Generator
	secondary Generator
	logger    *slog.Logger
}

// NewFallback returns a Generator that calls primary and, on upstream
// failure, falls back to secondary. Either argument may be nil. If primary is
// nil it goes straight to secondary; if secondary is nil and primary fails,
// the primary error is returned.
func NewFallback(primary, secondary Generator, logger *slog.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

// Generate implements Generator.
func (f *Fallback) Generate(ctx context.Context, req Request) (string, error) {
	if f.primary == nil {
		if f.secondary == nil {
			return "", &UpstreamError{Provider: "llm", Message: "no generator configured"}
		}
		return f.secondary.Generate(ctx, req)
	}

	text, err := f.primary.Generate(ctx, req)
	if err == nil {
		return text, nil
	}

	var up *UpstreamError
	if !errors.As(err, &up) || f.secondary == nil {
		return "", err
	}

	f.logger.Warn("llm: primary generator failed, trying secondary",
		"error", err,
		"tier", req.Tier,
		"request_id", req.RequestID,
	)
	text, err2 := f.secondary.Generate(ctx, req)
	if err2 != nil {
		return "", fmt.Errorf("llm: secondary after primary failure (%v): %w", err, err2)
	}
	return text, nil
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// AnthropicClient is the Generator backed by the Anthropic Messages API.
type AnthropicClient struct {
	baseURL    string
	apiKey     string
	models     Models
	httpClient *http.Client
}

// NewAnthropicClient returns a Generator that calls the Anthropic API.
//   - apiKey: ANTHROPIC_API_KEY
//   - models: one model per tier; empty tiers use Default
func NewAnthropicClient(apiKey string, models Models) *AnthropicClient {
	return &AnthropicClient{
		baseURL:    "https://api.anthropic.com/v1",
		apiKey:     apiKey,
		models:     models,
		httpClient: &http.Client{},
	}
}

// WithBaseURL points the client at another endpoint.
func (c *AnthropicClient) WithBaseURL(u string) *AnthropicClient {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// ─── ANTHROPIC API SHAPES ─────────────────────────────────────────────────────

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// anthropicMaxTokens comfortably covers a bundle plus meta.
const anthropicMaxTokens = 2048

// ─── IMPLEMENTATION ───────────────────────────────────────────────────────────

// Generate implements Generator.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, req, defaultTimeout)
	defer cancel()

	body, err := json.Marshal(anthropicRequest{
		Model:       c.models.For(req.Tier),
		MaxTokens:   anthropicMaxTokens,
		Temperature: req.Temperature,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.User}},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("anthropic: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classify(ctx, "anthropic", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", classify(ctx, "anthropic", err)
	}

	var parsed anthropicResponse
	jsonErr := json.Unmarshal(respBytes, &parsed)

	if jsonErr == nil && parsed.Error != nil {
		return "", &UpstreamError{Provider: "anthropic", Status: resp.StatusCode, Message: parsed.Error.Type + ": " + parsed.Error.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{Provider: "anthropic", Status: resp.StatusCode, Message: fmt.Sprintf("%.200s", string(respBytes))}
	}
	if jsonErr != nil {
		return "", &UpstreamError{Provider: "anthropic", Message: "unreadable response body", Err: jsonErr}
	}

	for _, block := range parsed.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic: %w", ErrEmpty)
}

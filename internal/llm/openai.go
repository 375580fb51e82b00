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

// ChatClient is a Generator for OpenAI-compatible /chat/completions endpoints.
// OpenAI and DeepSeek share the request and response shapes and differ only
// in base URL and model names.
type ChatClient struct {
	provider   string
	baseURL    string
	apiKey     string
	models     Models
	httpClient *http.Client
}

// NewOpenAIClient returns a Generator backed by the OpenAI API.
//   - apiKey: OPENAI_API_KEY
//   - models: e.g. gpt-4.1-mini by default, gpt-4.1 for high-risk and insight
func NewOpenAIClient(apiKey string, models Models) *ChatClient {
	return &ChatClient{
		provider:   "openai",
		baseURL:    "https://api.openai.com/v1",
		apiKey:     apiKey,
		models:     models,
		httpClient: &http.Client{},
	}
}

// NewDeepSeekClient returns a Generator backed by the DeepSeek API. DeepSeek
// has a single model for every tier.
//   - apiKey: DEEPSEEK_API_KEY
//   - model:  e.g. "deepseek-chat"
func NewDeepSeekClient(apiKey, model string) *ChatClient {
	return &ChatClient{
		provider:   "deepseek",
		baseURL:    "https://api.deepseek.com/v1",
		apiKey:     apiKey,
		models:     Models{Default: model},
		httpClient: &http.Client{},
	}
}

// WithBaseURL points the client at another compatible endpoint.
func (c *ChatClient) WithBaseURL(u string) *ChatClient {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// ─── OPENAI-COMPATIBLE API SHAPES ────────────────────────────────────────────

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat instructs the model to return a JSON object.
type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ─── IMPLEMENTATION ───────────────────────────────────────────────────────────

// Generate implements Generator.
func (c *ChatClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, req, defaultTimeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:          c.models.For(req.Tier),
		Temperature:    req.Temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s: marshal request: %w", c.provider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: build request: %w", c.provider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classify(ctx, c.provider, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", classify(ctx, c.provider, err)
	}

	var parsed chatResponse
	jsonErr := json.Unmarshal(respBytes, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("%.200s", string(respBytes))
		if jsonErr == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", &UpstreamError{Provider: c.provider, Status: resp.StatusCode, Message: msg}
	}
	if jsonErr != nil {
		return "", &UpstreamError{Provider: c.provider, Message: "unreadable response body", Err: jsonErr}
	}
	if parsed.Error != nil {
		return "", &UpstreamError{Provider: c.provider, Message: parsed.Error.Message}
	}

	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s: %w", c.provider, ErrEmpty)
	}
	return parsed.Choices[0].Message.Content, nil
}

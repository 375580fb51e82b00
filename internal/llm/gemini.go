package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient is the Generator backed by Google's Gemini API.
type GeminiClient struct {
	client *genai.Client
	models Models
}

// NewGeminiClient creates a Gemini generator.
//   - apiKey: GEMINI_API_KEY
//   - models: e.g. "gemini-2.5-flash" by default
func NewGeminiClient(ctx context.Context, apiKey string, models Models) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if models.Default == "" {
		models.Default = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiClient{client: client, models: models}, nil
}

// Generate implements Generator.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, req, defaultTimeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr(float32(req.Temperature)),
		ResponseMIMEType:  "application/json",
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.models.For(req.Tier), genai.Text(req.User), cfg)
	if err != nil {
		return "", classify(ctx, "gemini", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmpty)
	}
	return text, nil
}

// Package gemini generates text with Google's Gemini models.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/marzetti/salon-assistant/internal/llm"
)

// NewClient creates a Gemini API client shared by generation and embeddings.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// Generator implements llm.Generator.
type Generator struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

// New returns a Generator for model.
func New(client *genai.Client, model string, temperature float32, maxTokens int) *Generator {
	return &Generator{client: client, model: model, temperature: temperature, maxTokens: int32(maxTokens)}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: g.maxTokens,
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

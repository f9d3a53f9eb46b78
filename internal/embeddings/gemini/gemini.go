// Package gemini embeds text with the Gemini embedding models.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Provider embeds text through a shared genai client.
type Provider struct {
	client     *genai.Client
	model      string
	dimensions int32
}

// New returns a Provider. dimensions <= 0 keeps the model default.
func New(client *genai.Client, model string, dimensions int) *Provider {
	return &Provider{client: client, model: model, dimensions: int32(dimensions)}
}

// Embed returns the embedding of text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}
	var cfg *genai.EmbedContentConfig
	if p.dimensions > 0 {
		cfg = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(p.dimensions)}
	}
	resp, err := p.client.Models.EmbedContent(ctx, p.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini embed returned empty vector")
	}
	return resp.Embeddings[0].Values, nil
}

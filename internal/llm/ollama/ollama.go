// Package ollama generates text with a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	embedollama "github.com/marzetti/salon-assistant/internal/embeddings/ollama"
	"github.com/marzetti/salon-assistant/internal/llm"
)

// Generator implements llm.Generator over /api/generate.
type Generator struct {
	client      *resty.Client
	model       string
	temperature float32
	maxTokens   int
}

// New creates a Generator for model served at baseURL.
func New(baseURL, model string, temperature float32, maxTokens int) *Generator {
	c := resty.New().
		SetBaseURL(embedollama.NormalizeURL(baseURL)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(5 * time.Minute)
	return &Generator{client: c, model: model, temperature: temperature, maxTokens: maxTokens}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Model:  g.model,
		Prompt: prompt,
		Options: map[string]any{
			"temperature": g.temperature,
			"num_predict": g.maxTokens,
		},
	}
	var out generateResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(&req).
		SetResult(&out).
		Post("/api/generate")
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("ollama generate status %d: %s", resp.StatusCode(), resp.String())
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama generate error: %s", out.Error)
	}
	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

// HealthPing implements health.HealthPinger.
func (g *Generator) HealthPing(ctx context.Context) error {
	return embedollama.ModelAvailable(ctx, g.client, g.model)
}

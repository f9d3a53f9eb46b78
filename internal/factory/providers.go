package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/marzetti/salon-assistant/internal/config"
	emb "github.com/marzetti/salon-assistant/internal/embeddings"
	embgemini "github.com/marzetti/salon-assistant/internal/embeddings/gemini"
	embollama "github.com/marzetti/salon-assistant/internal/embeddings/ollama"
	"github.com/marzetti/salon-assistant/internal/llm"
	llmgemini "github.com/marzetti/salon-assistant/internal/llm/gemini"
	llmollama "github.com/marzetti/salon-assistant/internal/llm/ollama"
)

// Providers are the model-backed collaborators of the pipeline.
type Providers struct {
	Generator llm.Generator
	Embedder  emb.EmbeddingProvider
}

// NewProviders builds the generator and embedding provider. A single Gemini
// client is shared when both use Gemini.
func NewProviders(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Providers, error) {
	var client *genai.Client
	geminiClient := func() (*genai.Client, error) {
		if client != nil {
			return client, nil
		}
		c, err := llmgemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		client = c
		return c, nil
	}

	var p Providers
	switch cfg.LLMProvider {
	case "", "gemini":
		c, err := geminiClient()
		if err != nil {
			return nil, fmt.Errorf("llm provider: %w", err)
		}
		p.Generator = llmgemini.New(c, cfg.LLMModel, cfg.LLMTemperature, cfg.LLMMaxTokens)
	case "ollama":
		p.Generator = llmollama.New(cfg.OllamaURL, cfg.LLMModel, cfg.LLMTemperature, cfg.LLMMaxTokens)
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER: %s", cfg.LLMProvider)
	}

	switch cfg.EmbedProvider {
	case "", "gemini":
		c, err := geminiClient()
		if err != nil {
			return nil, fmt.Errorf("embedding provider: %w", err)
		}
		p.Embedder = embgemini.New(c, cfg.EmbedModel, cfg.EmbedDimensions)
	case "ollama":
		p.Embedder = embollama.New(cfg.OllamaURL, cfg.EmbedModel)
	default:
		return nil, fmt.Errorf("unknown EMBED_PROVIDER: %s", cfg.EmbedProvider)
	}

	warmup(ctx, cfg, p.Embedder, log)
	return &p, nil
}

// warmup embeds a probe string in the background and reports whether the
// vector width matches the configured dimensions.
func warmup(ctx context.Context, cfg *config.Config, provider emb.EmbeddingProvider, log zerolog.Logger) {
	go func() {
		warmupTimeout := time.Duration(cfg.BootstrapTimeoutSeconds) * time.Second
		warmupCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
		defer cancel()

		vec, err := provider.Embed(warmupCtx, "factory-warmup-check")
		switch {
		case err != nil || len(vec) == 0:
			log.Warn().Err(err).Int("vec_len", len(vec)).
				Str("provider", cfg.EmbedProvider).Str("model", cfg.EmbedModel).
				Msg("embedding provider warmup failed")
		case len(vec) != cfg.EmbedDimensions:
			log.Error().Int("vec_len", len(vec)).Int("expected", cfg.EmbedDimensions).
				Str("provider", cfg.EmbedProvider).Str("model", cfg.EmbedModel).
				Msg("embedding dimensions do not match configuration")
		default:
			log.Debug().Str("provider", cfg.EmbedProvider).Str("model", cfg.EmbedModel).
				Msg("embedding provider warmup completed")
		}
	}()
}

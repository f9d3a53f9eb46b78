package factory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marzetti/salon-assistant/internal/config"
	"github.com/marzetti/salon-assistant/internal/knowledge/chromem"
	"github.com/marzetti/salon-assistant/internal/llm/ollama"
	"github.com/marzetti/salon-assistant/internal/model"
)

func TestNewStore_SQLite(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.SQLitePath = filepath.Join(t.TempDir(), "assistant.db")

	backend, err := NewStore(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	_, err = backend.Store.Conversations().Load(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestNewStore_DefaultLocalPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SALON_ASSISTANT_HOME", home)
	cfg := config.NewForTesting()
	cfg.SQLitePath = ""

	backend, err := NewStore(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	assert.FileExists(t, filepath.Join(home, "assistant.db"))
}

func TestNewStore_Errors(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.DBDriver = "mysql"
	_, err := NewStore(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)

	cfg.DBDriver = "postgres"
	cfg.PostgresDSN = ""
	_, err = NewStore(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
}

func TestNewKnowledgeIndex_Chromem(t *testing.T) {
	cfg := config.NewForTesting()
	backend, err := NewStore(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	idx, err := NewKnowledgeIndex(context.Background(), cfg, backend, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &chromem.Index{}, idx)

	cfg.VectorStore = "pgvector"
	_, err = NewKnowledgeIndex(context.Background(), cfg, backend, nil, zerolog.Nop())
	require.Error(t, err)
}

func TestNewProviders(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.GeminiAPIKey = ""
	_, err := NewProviders(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err, "gemini without an API key")

	cfg.LLMProvider, cfg.EmbedProvider = "ollama", "ollama"
	cfg.OllamaURL = "http://127.0.0.1:1"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p, err := NewProviders(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &ollama.Generator{}, p.Generator)
	assert.NotNil(t, p.Embedder)

	cfg.LLMProvider = "openai"
	_, err = NewProviders(ctx, cfg, zerolog.Nop())
	require.Error(t, err)
}

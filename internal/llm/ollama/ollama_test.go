package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marzetti/salon-assistant/internal/llm"
)

func TestGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Errorf("expected non-streaming request")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "  Hola!  ", Done: true})
	}))
	defer srv.Close()

	g := New(srv.URL, "llama3", 0.2, 512)
	out, err := g.Generate(context.Background(), "saluda")
	require.NoError(t, err)
	require.Equal(t, "Hola!", out)
}

func TestGenerator_EmptyAndErrors(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"","done":true}`))
	}))
	defer empty.Close()
	_, err := New(empty.URL, "llama3", 0.2, 512).Generate(context.Background(), "x")
	require.ErrorIs(t, err, llm.ErrEmptyResponse)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer failing.Close()
	_, err = New(failing.URL, "llama3", 0.2, 512).Generate(context.Background(), "x")
	require.Error(t, err)
}

func TestGenerator_HonorsContext(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(srv.URL, "llama3", 0.2, 512).Generate(ctx, "x")
	require.Error(t, err)
}

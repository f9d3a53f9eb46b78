package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/marzetti/salon-assistant/internal/api/respond"
)

// KnowledgeIngester is implemented by *ingest.Ingester.
type KnowledgeIngester interface {
	Run(ctx context.Context, root string) (int, error)
}

// IngestResponse is the body of a successful ingestion.
type IngestResponse struct {
	OK     bool `json:"ok"`
	Chunks int  `json:"chunks"`
}

type IngestHandler struct {
	ingester KnowledgeIngester
	token    string
	root     string
	log      zerolog.Logger
}

func NewIngestHandler(ing KnowledgeIngester, token, root string, log zerolog.Logger) *IngestHandler {
	return &IngestHandler{ingester: ing, token: token, root: root, log: log}
}

func bearerToken(r *http.Request) string {
	if t := r.Header.Get("X-Ingest-Token"); t != "" {
		return t
	}
	auth := r.Header.Get("Authorization")
	if t, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(t)
	}
	return ""
}

// HandleIngest handles POST /api/ingest. The endpoint is disabled until an
// ingest token and a knowledge root are configured.
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if h.token == "" || h.root == "" || h.ingester == nil {
		respond.WriteInternalError(w, respond.CodeMissingEnv)
		return
	}
	if subtle.ConstantTimeCompare([]byte(bearerToken(r)), []byte(h.token)) != 1 {
		respond.WriteError(w, http.StatusUnauthorized, respond.CodeUnauthorized)
		return
	}
	n, err := h.ingester.Run(r.Context(), h.root)
	if err != nil {
		h.log.Error().Stack().Err(err).Str("root", h.root).Msg("ingestion failed")
		respond.WriteInternalError(w, respond.CodeIngestFailed)
		return
	}
	respond.WriteJSON(w, http.StatusOK, IngestResponse{OK: true, Chunks: n})
}

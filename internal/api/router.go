// Package api exposes the assistant over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/marzetti/salon-assistant/internal/api/recovery"
	"github.com/marzetti/salon-assistant/internal/api/respond"
	"github.com/marzetti/salon-assistant/internal/health"
)

// Deps wires the HTTP handlers. Ingest may be nil when the service runs
// without a knowledge base root.
type Deps struct {
	Chat    ChatPipeline
	Metrics MetricsReader
	Ingest  KnowledgeIngester
	Health  func() health.Status
	Log     zerolog.Logger

	AllowedOrigins []string
	IngestToken    string
	KBRoot         string
}

// NewRouter creates the HTTP handler with all API routes, wrapped in CORS.
func NewRouter(d Deps) http.Handler {
	root := mux.NewRouter()

	// Global middlewares
	root.Use(recovery.Middleware)
	root.Use(RequestLogger(d.Log))
	root.MethodNotAllowedHandler = http.HandlerFunc(respond.MethodNotAllowed)

	chat := NewChatHandler(d.Chat, d.Log)
	root.HandleFunc("/api/chat", chat.HandleChat).Methods(http.MethodPost)

	metrics := NewMetricsHandler(d.Metrics)
	root.HandleFunc("/api/metrics", metrics.GetDaily).Methods(http.MethodGet)

	ingest := NewIngestHandler(d.Ingest, d.IngestToken, d.KBRoot, d.Log)
	root.HandleFunc("/api/ingest", ingest.HandleIngest).Methods(http.MethodPost)

	hh := NewHealthHandler(d.Health)
	root.HandleFunc("/api/health", hh.CheckHealth).Methods(http.MethodGet)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Ingest-Token"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	})
	return c.Handler(root)
}

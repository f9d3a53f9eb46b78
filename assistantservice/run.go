package assistantservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/marzetti/salon-assistant/internal/api"
	"github.com/marzetti/salon-assistant/internal/assistant"
	"github.com/marzetti/salon-assistant/internal/config"
	emb "github.com/marzetti/salon-assistant/internal/embeddings"
	"github.com/marzetti/salon-assistant/internal/factory"
	"github.com/marzetti/salon-assistant/internal/governance"
	"github.com/marzetti/salon-assistant/internal/health"
	"github.com/marzetti/salon-assistant/internal/ingest"
	"github.com/marzetti/salon-assistant/internal/knowledge"
	"github.com/marzetti/salon-assistant/internal/logger"
	"github.com/marzetti/salon-assistant/internal/metrics"
	"github.com/marzetti/salon-assistant/internal/ratelimit"
	"github.com/marzetti/salon-assistant/internal/retrieval"
	"github.com/marzetti/salon-assistant/internal/store"
)

// Run starts the assistant HTTP server and blocks until shutdown or error.
func Run() error {
	cfg, err := config.New()
	if err != nil {
		log := logger.New("assistant-service")
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	log := logger.NewWithOptions("assistant-service", logger.Options{
		Level:   cfg.LogLevel,
		Console: cfg.Environment == config.EnvDevelopment,
	})

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("vector_store", cfg.VectorStore).
		Int("http_port", cfg.HTTPPort).
		Str("llm_provider", cfg.LLMProvider).
		Str("embed_provider", cfg.EmbedProvider).
		Str("embed_model", cfg.EmbedModel).
		Msg("Assistant service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	deps, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = deps.backend.Close() }()

	pipeline := buildPipeline(cfg, deps, log)

	// Start health checkers and bind service health
	svcHealth := startHealthCheckers(ctx, cfg, log, deps)

	router := api.NewRouter(api.Deps{
		Chat:           pipeline,
		Metrics:        deps.metrics,
		Ingest:         ingest.New(deps.providers.Embedder, deps.index, deps.backend.Store.Meta(), log, ingest.WithEmbedTimeout(cfg.EmbedTimeout())),
		Health:         svcHealth.Status,
		Log:            log,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		IngestToken:    cfg.IngestToken,
		KBRoot:         cfg.KBRoot,
	})

	// Block startup until dependencies report healthy; fail fast otherwise
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	// HTTP server and serve
	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		// replies already generating still persist their assistant turn
		pipeline.Wait()
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

type dependencies struct {
	backend   *factory.Backend
	index     knowledge.Index
	providers *factory.Providers
	metrics   *metrics.Aggregator
}

// initDependencies constructs required components and enforces fail-fast on missing deps.
func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*dependencies, error) {
	backend, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return nil, err
	}

	providers, err := factory.NewProviders(ctx, cfg, log)
	if err != nil {
		_ = backend.Close()
		log.Error().Stack().Err(err).Msg("Model providers unavailable")
		return nil, err
	}

	idx, err := factory.NewKnowledgeIndex(ctx, cfg, backend, providers.Embedder, log)
	if err != nil {
		_ = backend.Close()
		log.Error().Stack().Err(err).Msg("Knowledge index unavailable")
		return nil, err
	}

	return &dependencies{
		backend:   backend,
		index:     idx,
		providers: providers,
		metrics:   metrics.New(backend.Store.Metrics()),
	}, nil
}

// buildPipeline wires governance, retrieval and persistence into the chat pipeline.
func buildPipeline(cfg *config.Config, deps *dependencies, log zerolog.Logger) *assistant.Pipeline {
	st := deps.backend.Store
	gen := deps.providers.Generator
	classifyTimeout := cfg.ClassifyTimeout()

	return assistant.New(assistant.Deps{
		Conversations: st.Conversations(),
		Limiter:       ratelimit.New(st.RateLimits(), cfg.RateLimit, cfg.RateWindow(), log),
		Classifier:    governance.NewClassifier(gen, classifyTimeout, log),
		Risk:          governance.NewRiskScorer(gen, classifyTimeout, log),
		Triage:        governance.NewTriage(gen, classifyTimeout, log),
		Retriever:     retrieval.New(deps.providers.Embedder, deps.index, cfg.RetrievalLimit, cfg.EmbedTimeout()),
		Answerer:      gen,
		Metrics:       deps.metrics,
	}, assistant.Options{
		MaxMessageLength: cfg.MaxMessageLength,
		GenerateTimeout:  cfg.GenerateTimeout(),
		WhatsAppURL:      cfg.WhatsAppURL,
	}, log)
}

// startHealthCheckers starts component checkers and service-level aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, deps *dependencies) *health.ServiceHealthChecker {
	var checkers []health.HealthChecker
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(deps.backend.Store, log, probeTimeout)
	go storeChecker.Start(ctx, interval)
	checkers = append(checkers, storeChecker)

	if pinger, ok := deps.index.(health.HealthPinger); ok {
		idxChecker := health.NewPingChecker("knowledge_index", pinger, log, probeTimeout)
		go idxChecker.Start(ctx, interval)
		checkers = append(checkers, idxChecker)
	}

	embChecker := health.NewPingChecker("embedder", emb.Probe(deps.providers.Embedder), log, probeTimeout)
	go embChecker.Start(ctx, interval)
	checkers = append(checkers, embChecker)

	// The generator has local fallbacks for classification, so only a
	// generator with a cheap probe takes part in service health.
	if pinger, ok := deps.providers.Generator.(health.HealthPinger); ok {
		genChecker := health.NewPingChecker("generator", pinger, log, probeTimeout)
		go genChecker.Start(ctx, interval)
		checkers = append(checkers, genChecker)
	}

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// event streams stay open for the whole generation
		WriteTimeout: cfg.GenerateTimeout() + cfg.EmbedTimeout() + 2*cfg.ClassifyTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in seconds,
// calculated as interval*2 with a minimum of 60 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds (down: %s)",
				timeoutSeconds, strings.Join(svcHealth.Status().Down, ", "))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

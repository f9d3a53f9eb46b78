package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marzetti/salon-assistant/internal/assistant"
	"github.com/marzetti/salon-assistant/internal/governance"
	"github.com/marzetti/salon-assistant/internal/health"
	"github.com/marzetti/salon-assistant/internal/llm"
	"github.com/marzetti/salon-assistant/internal/metrics"
	"github.com/marzetti/salon-assistant/internal/model"
	"github.com/marzetti/salon-assistant/internal/ratelimit"
	"github.com/marzetti/salon-assistant/internal/store"
	"github.com/marzetti/salon-assistant/internal/store/sqlite"
	"github.com/marzetti/salon-assistant/internal/stream"
)

var unavailable = llm.GeneratorFunc(func(context.Context, string) (string, error) {
	return "", errors.New("model unavailable")
})

type stubRetriever struct{ hits []model.ScoredChunk }

func (s stubRetriever) Retrieve(context.Context, string, model.IntentName) ([]model.ScoredChunk, error) {
	return s.hits, nil
}

type stubIngester struct {
	root  string
	calls int
	err   error
}

func (s *stubIngester) Run(_ context.Context, root string) (int, error) {
	s.calls++
	s.root = root
	return 12, s.err
}

type testServer struct {
	*httptest.Server
	pipeline *assistant.Pipeline
	store    store.Store
	ingester *stubIngester
}

func newTestServer(t *testing.T, limit int) *testServer {
	t.Helper()
	db, err := sqlite.Open(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(context.Background(), db))
	s := sqlite.NewWithDB(db)

	log := zerolog.Nop()
	agg := metrics.New(s.Metrics())
	p := assistant.New(assistant.Deps{
		Conversations: s.Conversations(),
		Limiter:       ratelimit.New(s.RateLimits(), limit, time.Minute, log),
		Classifier:    governance.NewClassifier(unavailable, time.Second, log),
		Risk:          governance.NewRiskScorer(unavailable, time.Second, log),
		Triage:        governance.NewTriage(unavailable, time.Second, log),
		Retriever: stubRetriever{hits: []model.ScoredChunk{
			{ID: "precios-corte", Text: "Corte desde 12000", Score: 0.91, Payload: map[string]interface{}{"source_id": "precios-corte"}},
		}},
		Answerer: llm.GeneratorFunc(func(context.Context, string) (string, error) {
			return "El corte sale desde 12000.", nil
		}),
		Metrics: agg,
	}, assistant.Options{GenerateTimeout: time.Second, WhatsAppURL: "https://wa.me/5490000000000"}, log)

	ing := &stubIngester{}
	srv := httptest.NewServer(NewRouter(Deps{
		Chat:           p,
		Metrics:        agg,
		Ingest:         ing,
		Health:         func() health.Status { return health.Status{Healthy: true} },
		Log:            log,
		AllowedOrigins: []string{"https://salon.example"},
		IngestToken:    "s3cret",
		KBRoot:         "kb",
	}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, pipeline: p, store: s, ingester: ing}
}

func (ts *testServer) post(t *testing.T, path, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body["error"]
}

func TestChat_StreamsAnswer(t *testing.T) {
	ts := newTestServer(t, 20)
	resp := ts.post(t, "/api/chat", `{"message":"cuanto cuesta el corte","page":"/servicios"}`,
		map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	events, err := stream.Parse(raw)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []string{stream.EventMeta, stream.EventMessage, stream.EventDone},
		[]string{events[0].Name, events[1].Name, events[2].Name})

	var meta assistant.Meta
	require.NoError(t, json.Unmarshal(events[0].Data.(json.RawMessage), &meta))
	assert.Equal(t, model.IntentPrecio, meta.Intent.Intent)
	assert.Equal(t, model.RiskBajo, meta.RiskLevel)
	assert.Nil(t, meta.Handoff)
	require.Len(t, meta.Sources, 1)
	assert.Equal(t, "precios-corte", meta.Sources[0].SourceID)

	var msg stream.MessageData
	require.NoError(t, json.Unmarshal(events[1].Data.(json.RawMessage), &msg))
	assert.Equal(t, "El corte sale desde 12000.", msg.Text)

	ts.pipeline.Wait()
	conv, err := ts.store.Conversations().Load(context.Background(), meta.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "/servicios", conv.Messages[0].Metadata["page"])
	assert.Equal(t, "Go-http-client/1.1", conv.Messages[0].Metadata["user_agent"])
}

func TestChat_Handoff(t *testing.T) {
	ts := newTestServer(t, 20)
	resp := ts.post(t, "/api/chat", `{"message":"me arde el cuero cabelludo y quiero decolorar hoy"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	events, err := stream.Parse(raw)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	var meta assistant.Meta
	require.NoError(t, json.Unmarshal(events[0].Data.(json.RawMessage), &meta))
	assert.Equal(t, model.RiskAlto, meta.RiskLevel)
	require.NotNil(t, meta.Handoff)
	assert.Equal(t, "https://wa.me/5490000000000", meta.Handoff.WhatsAppURL)
	ts.pipeline.Wait()
}

func TestChat_Rejections(t *testing.T) {
	ts := newTestServer(t, 2)

	resp := ts.post(t, "/api/chat", `{"message":`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_json", readError(t, resp))

	resp = ts.post(t, "/api/chat", `{"message":"  \u0007 "}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "empty_message", readError(t, resp))

	get, err := ts.Client().Get(ts.URL + "/api/chat")
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)
	assert.Equal(t, "method_not_allowed", readError(t, get))

	for i := 0; i < 2; i++ {
		resp = ts.post(t, "/api/chat", `{"message":"hola"}`, map[string]string{"X-Forwarded-For": "198.51.100.4"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	resp = ts.post(t, "/api/chat", `{"message":"hola"}`, map[string]string{"X-Forwarded-For": "198.51.100.4"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", readError(t, resp))

	// another client keeps its own window
	resp = ts.post(t, "/api/chat", `{"message":"hola"}`, map[string]string{"X-Forwarded-For": "198.51.100.5"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, _ = io.Copy(io.Discard, resp.Body)
	ts.pipeline.Wait()
}

func TestMetrics_Endpoint(t *testing.T) {
	ts := newTestServer(t, 20)

	resp, err := ts.Client().Get(ts.URL + "/api/metrics?date=2001-01-01")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{}`, string(raw))

	chat := ts.post(t, "/api/chat", `{"message":"cuanto cuesta el corte"}`, nil)
	_, _ = io.Copy(io.Discard, chat.Body)
	ts.pipeline.Wait()

	today, err := ts.Client().Get(ts.URL + "/api/metrics")
	require.NoError(t, err)
	defer today.Body.Close()
	var row model.DailyMetrics
	require.NoError(t, json.NewDecoder(today.Body).Decode(&row))
	assert.Equal(t, int64(1), row.TotalMessages)
	assert.Equal(t, int64(1), row.RiskBajo)

	bad, err := ts.Client().Get(ts.URL + "/api/metrics?date=ayer")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.Equal(t, "invalid_date", readError(t, bad))

	post := ts.post(t, "/api/metrics", `{}`, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}

func TestIngest_Endpoint(t *testing.T) {
	ts := newTestServer(t, 20)

	resp := ts.post(t, "/api/ingest", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", readError(t, resp))

	resp = ts.post(t, "/api/ingest", "", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, ts.ingester.calls)

	resp = ts.post(t, "/api/ingest", "", map[string]string{"Authorization": "Bearer s3cret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out IngestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, IngestResponse{OK: true, Chunks: 12}, out)
	assert.Equal(t, "kb", ts.ingester.root)

	resp = ts.post(t, "/api/ingest", "", map[string]string{"X-Ingest-Token": "s3cret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ts.ingester.err = errors.New("embedder down")
	resp = ts.post(t, "/api/ingest", "", map[string]string{"X-Ingest-Token": "s3cret"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "ingest_failed", readError(t, resp))
}

func TestIngest_NotConfigured(t *testing.T) {
	h := NewIngestHandler(&stubIngester{}, "", "kb", zerolog.Nop())
	rr := httptest.NewRecorder()
	h.HandleIngest(rr, httptest.NewRequest(http.MethodPost, "/api/ingest", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"missing_env"}`, rr.Body.String())
}

func TestHealth_Endpoint(t *testing.T) {
	ts := newTestServer(t, 20)
	resp, err := ts.Client().Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Empty(t, body.Down)

	rr := httptest.NewRecorder()
	NewHealthHandler(nil).CheckHealth(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Contains(t, rr.Body.String(), "unhealthy")

	// failing components are named
	rr = httptest.NewRecorder()
	down := func() health.Status { return health.Status{Down: []string{"embedder", "store"}} }
	NewHealthHandler(down).CheckHealth(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, []string{"embedder", "store"}, body.Down)
}

func TestCORS_Preflight(t *testing.T) {
	ts := newTestServer(t, 20)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/chat", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://salon.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "https://salon.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestClientID(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", ClientID(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.2")
	assert.Equal(t, "203.0.113.9", ClientID(r))

	r.Header.Set("X-Forwarded-For", "")
	r.RemoteAddr = ""
	assert.Equal(t, "unknown", ClientID(r))
}

package api

import (
	"net/http"
	"time"

	respond "github.com/marzetti/salon-assistant/internal/api/respond"
	"github.com/marzetti/salon-assistant/internal/health"
)

// HealthResponse is the body of GET /api/health. Down lists the failing
// components when the service is unhealthy.
type HealthResponse struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Down      []string `json:"down,omitempty"`
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	status func() health.Status
}

// NewHealthHandler creates a health handler reporting status; nil means
// always unhealthy.
func NewHealthHandler(status func() health.Status) *HealthHandler {
	if status == nil {
		status = func() health.Status { return health.Status{} }
	}
	return &HealthHandler{status: status}
}

// CheckHealth handles GET /api/health
// Always returns 200; body reports healthy/unhealthy. 500 indicates handler failure only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	s := h.status()
	resp := HealthResponse{Status: "unhealthy", Timestamp: time.Now().Format(time.RFC3339), Down: s.Down}
	if s.Healthy {
		resp.Status = "healthy"
		resp.Down = nil
	}
	respond.WriteJSON(w, http.StatusOK, resp)
}

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/marzetti/salon-assistant/internal/api/respond"
	"github.com/marzetti/salon-assistant/internal/model"
)

// MetricsReader is implemented by *metrics.Aggregator.
type MetricsReader interface {
	Day(ctx context.Context, day string) (*model.DailyMetrics, error)
	Today() string
}

type MetricsHandler struct {
	metrics MetricsReader
}

func NewMetricsHandler(m MetricsReader) *MetricsHandler { return &MetricsHandler{metrics: m} }

// GetDaily handles GET /api/metrics?date=YYYY-MM-DD. Without a date it
// reports today; a day without traffic is an empty object.
func (h *MetricsHandler) GetDaily(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("date")
	if day == "" {
		day = h.metrics.Today()
	}
	row, err := h.metrics.Day(r.Context(), day)
	switch {
	case errors.Is(err, model.ErrValidation):
		respond.WriteBadRequest(w, respond.CodeInvalidDate)
	case err != nil:
		respond.WriteInternalError(w, respond.CodeInternal)
	case row == nil:
		respond.WriteJSON(w, http.StatusOK, struct{}{})
	default:
		respond.WriteJSON(w, http.StatusOK, row)
	}
}

package respond

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Error codes returned in ErrorResponse.Error.
const (
	CodeMethodNotAllowed  = "method_not_allowed"
	CodeInvalidJSON       = "invalid_json"
	CodeEmptyMessage      = "empty_message"
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodeInvalidDate       = "invalid_date"
	CodeUnauthorized      = "unauthorized"
	CodeMissingEnv        = "missing_env"
	CodeIngestFailed      = "ingest_failed"
	CodeInternal          = "internal_error"
)

// ErrorResponse is the body of every non-streaming error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError writes {"error": code} with the given status.
func WriteError(w http.ResponseWriter, statusCode int, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: code})
}

// WriteBadRequest writes a 400 Bad Request response
func WriteBadRequest(w http.ResponseWriter, code string) {
	WriteError(w, http.StatusBadRequest, code)
}

// WriteInternalError writes a 500 Internal Server Error response
func WriteInternalError(w http.ResponseWriter, code string) {
	WriteError(w, http.StatusInternalServerError, code)
}

// MethodNotAllowed is installed as the router's 405 handler.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/marzetti/salon-assistant/internal/api/respond"
	"github.com/marzetti/salon-assistant/internal/assistant"
	"github.com/marzetti/salon-assistant/internal/model"
	"github.com/marzetti/salon-assistant/internal/ratelimit"
	"github.com/marzetti/salon-assistant/internal/stream"
)

// maxChatBody bounds the request body; messages are truncated far below it.
const maxChatBody = 64 << 10

// ChatPipeline is implemented by *assistant.Pipeline.
type ChatPipeline interface {
	Accept(ctx context.Context, req assistant.Request) (*assistant.Turn, error)
	Stream(ctx context.Context, turn *assistant.Turn) *stream.Emitter
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	Page           string `json:"page,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
}

type ChatHandler struct {
	pipeline ChatPipeline
	log      zerolog.Logger
}

func NewChatHandler(p ChatPipeline, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{pipeline: p, log: log}
}

// HandleChat handles POST /api/chat. Rejections are plain JSON; an admitted
// message is answered as an event stream.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		respond.WriteBadRequest(w, respond.CodeInvalidJSON)
		return
	}
	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = r.UserAgent()
	}

	turn, err := h.pipeline.Accept(r.Context(), assistant.Request{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		Page:           req.Page,
		UserAgent:      userAgent,
		ClientID:       ClientID(r),
	})
	switch {
	case errors.Is(err, model.ErrEmptyMessage):
		respond.WriteBadRequest(w, respond.CodeEmptyMessage)
		return
	case errors.Is(err, model.ErrRateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(int(ratelimit.RetryAfter.Seconds())))
		respond.WriteError(w, http.StatusTooManyRequests, respond.CodeRateLimitExceeded)
		return
	case err != nil:
		h.log.Error().Stack().Err(err).Msg("chat message not accepted")
		respond.WriteInternalError(w, respond.CodeInternal)
		return
	}

	em := h.pipeline.Stream(r.Context(), turn)
	defer em.Close()

	stream.SetHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := stream.Write(w, em.Events()); err != nil {
		h.log.Warn().Err(err).
			Str("conversation_id", turn.Conversation.ConversationID).
			Msg("client went away mid-stream")
	}
}

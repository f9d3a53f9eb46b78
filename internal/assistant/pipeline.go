package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marzetti/salon-assistant/internal/governance"
	"github.com/marzetti/salon-assistant/internal/llm"
	"github.com/marzetti/salon-assistant/internal/model"
	"github.com/marzetti/salon-assistant/internal/retrieval"
	"github.com/marzetti/salon-assistant/internal/sanitize"
	"github.com/marzetti/salon-assistant/internal/store"
	"github.com/marzetti/salon-assistant/internal/stream"
)

// Collaborators of the pipeline. The governance, retrieval, ratelimit and
// metrics packages provide the production implementations.
type (
	Admitter interface {
		Admit(ctx context.Context, identifier string) bool
	}
	IntentClassifier interface {
		Classify(ctx context.Context, message string) model.IntentResult
	}
	RiskScorer interface {
		Score(ctx context.Context, message string, intent model.IntentResult) model.RiskResult
	}
	TriageGenerator interface {
		Questions(ctx context.Context, message string) []string
	}
	Retriever interface {
		Retrieve(ctx context.Context, query string, intent model.IntentName) ([]model.ScoredChunk, error)
	}
	MetricsRecorder interface {
		Record(ctx context.Context, level model.RiskLevel, decision model.Decision) error
	}
)

// Deps wires a Pipeline.
type Deps struct {
	Conversations store.Conversations
	Limiter       Admitter
	Classifier    IntentClassifier
	Risk          RiskScorer
	Triage        TriageGenerator
	Retriever     Retriever
	Answerer      llm.Generator
	Metrics       MetricsRecorder
}

// Options tunes a Pipeline.
type Options struct {
	MaxMessageLength int
	GenerateTimeout  time.Duration
	WhatsAppURL      string
	EventBuffer      int
}

// Request is one inbound chat message.
type Request struct {
	Message        string
	ConversationID string
	Page           string
	UserAgent      string
	ClientID       string
}

// Turn is an admitted message whose user turn has been recorded.
type Turn struct {
	Conversation *model.Conversation
	Message      string
}

// Handoff annotates meta when the reply routes the client to a human.
type Handoff struct {
	Reason      string `json:"reason"`
	WhatsAppURL string `json:"whatsapp_url,omitempty"`
}

// Source is a retrieved chunk cited by an answer.
type Source struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	SourceID string  `json:"source_id,omitempty"`
}

// Meta is the payload of the first event of every reply.
type Meta struct {
	ConversationID string             `json:"conversation_id"`
	RiskLevel      model.RiskLevel    `json:"risk_level"`
	Intent         model.IntentResult `json:"intent"`
	Handoff        *Handoff           `json:"handoff,omitempty"`
	Sources        []Source           `json:"sources,omitempty"`
}

// ErrorCodeGeneration is sent in the error event when no answer could be produced.
const ErrorCodeGeneration = "generation_failed"

// Pipeline handles chat messages end to end.
type Pipeline struct {
	deps Deps
	opts Options
	log  zerolog.Logger
	wg   sync.WaitGroup
}

func New(deps Deps, opts Options, log zerolog.Logger) *Pipeline {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = sanitize.DefaultMaxLength
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 20 * time.Second
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 8
	}
	return &Pipeline{deps: deps, opts: opts, log: log}
}

// Accept validates and admits req, then records the user turn. It returns
// model.ErrEmptyMessage or model.ErrRateLimited before touching any state.
// Store failures are logged and do not reject the message.
func (p *Pipeline) Accept(ctx context.Context, req Request) (*Turn, error) {
	msg := sanitize.Input(req.Message, p.opts.MaxMessageLength)
	if msg == "" {
		return nil, model.ErrEmptyMessage
	}
	if !p.deps.Limiter.Admit(ctx, req.ClientID) {
		return nil, model.ErrRateLimited
	}

	id := strings.TrimSpace(req.ConversationID)
	if id == "" {
		id = uuid.NewString()
	}
	log := p.log.With().Str("conversation_id", id).Logger()

	conv, err := p.deps.Conversations.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			log.Error().Err(err).Str("stage", "load").Msg("conversation load failed; starting fresh")
		}
		conv = model.NewConversation(id)
	}
	if err := p.deps.Conversations.Save(ctx, conv); err != nil {
		log.Error().Err(err).Str("stage", "save").Msg("conversation save failed")
	}

	user := newMessage(conv, model.RoleUser, msg)
	if req.Page != "" || req.UserAgent != "" {
		user.Metadata = map[string]interface{}{}
		if req.Page != "" {
			user.Metadata["page"] = req.Page
		}
		if req.UserAgent != "" {
			user.Metadata["user_agent"] = req.UserAgent
		}
	}
	updated, err := p.deps.Conversations.AppendMessage(ctx, conv, user)
	if err != nil {
		log.Error().Err(err).Str("stage", "append_user").Msg("user message not persisted")
		updated = conv.WithMessage(user)
	}
	return &Turn{Conversation: updated, Message: msg}, nil
}

// newMessage stamps a message no earlier than the last one in conv.
func newMessage(conv *model.Conversation, role model.Role, content string) model.Message {
	ts := model.Now()
	if n := len(conv.Messages); n > 0 && ts.Before(conv.Messages[n-1].Timestamp) {
		ts = conv.Messages[n-1].Timestamp
	}
	return model.Message{ID: uuid.NewString(), Role: role, Content: content, Timestamp: ts}
}

// Stream answers turn in the background and returns the emitter whose
// events the transport should forward.
func (p *Pipeline) Stream(ctx context.Context, turn *Turn) *stream.Emitter {
	em := stream.NewEmitter(ctx, p.opts.EventBuffer)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Respond(ctx, turn, em)
	}()
	return em
}

// Wait blocks until every background reply has finished persisting.
func (p *Pipeline) Wait() { p.wg.Wait() }

// Respond classifies the turn, picks a strategy and emits meta, message and
// done (or error). The assistant turn and metrics are written after
// emission. If ctx ends, no new external step is started.
func (p *Pipeline) Respond(ctx context.Context, turn *Turn, em *stream.Emitter) {
	defer em.Close()
	msg := turn.Message
	log := p.log.With().Str("conversation_id", turn.Conversation.ConversationID).Logger()

	intent := p.deps.Classifier.Classify(ctx, msg)
	risk := p.deps.Risk.Score(ctx, msg, intent)
	decision := Decide(intent, risk)

	meta := Meta{ConversationID: turn.Conversation.ConversationID, RiskLevel: risk.RiskLevel, Intent: intent}
	var (
		text   string
		chunks []model.ScoredChunk
		fault  error
	)

	switch decision {
	case model.DecisionHandoff:
		meta.Handoff = &Handoff{Reason: "risk_high", WhatsAppURL: p.opts.WhatsAppURL}
		text = governance.HandoffMessage(risk.RiskLevel)
	case model.DecisionTriage:
		if ctx.Err() != nil {
			p.abandon(ctx, risk, decision, log)
			return
		}
		text = governance.TriageText(p.deps.Triage.Questions(ctx, msg))
	default:
		if ctx.Err() != nil {
			p.abandon(ctx, risk, decision, log)
			return
		}
		var err error
		chunks, err = p.deps.Retriever.Retrieve(ctx, msg, intent.Intent)
		if err != nil {
			fault = fmt.Errorf("retrieval: %w", err)
			break
		}
		meta.Sources = sourcesOf(chunks)
	}

	gone := em.Meta(meta) != nil

	if decision == model.DecisionRespond && fault == nil {
		if ctx.Err() != nil {
			p.abandon(ctx, risk, decision, log)
			return
		}
		// Once started the call may finish after the client leaves; the
		// answer is still persisted.
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.GenerateTimeout)
		prompt := governance.AnswererPrompt(retrieval.ContextText(chunks), msg, string(risk.RiskLevel), string(intent.Intent))
		out, err := p.deps.Answerer.Generate(genCtx, prompt)
		cancel()
		if err != nil {
			fault = fmt.Errorf("generation: %w", err)
		}
		text = strings.TrimSpace(out)
	}

	if fault != nil {
		log.Error().Err(fault).Str("decision", string(decision)).Msg("reply failed; sending apology")
		text = governance.ApologyMessage
		if !gone {
			_ = em.Fail(stream.ErrorData{Error: ErrorCodeGeneration, Text: text})
		}
	} else if !gone {
		if err := em.Message(text); err == nil {
			_ = em.Done()
		}
	}

	p.finish(ctx, turn, text, intent, risk, decision, fault, log)
}

func (p *Pipeline) finish(ctx context.Context, turn *Turn, text string, intent model.IntentResult,
	risk model.RiskResult, decision model.Decision, fault error, log zerolog.Logger) {
	ctx = context.WithoutCancel(ctx)

	reply := newMessage(turn.Conversation, model.RoleAssistant, text)
	reply.Metadata = map[string]interface{}{
		"intent":     string(intent.Intent),
		"risk_level": string(risk.RiskLevel),
		"risk_score": risk.RiskScore,
		"decision":   string(decision),
	}
	if intent.Servicio != nil {
		reply.Metadata["servicio"] = string(*intent.Servicio)
	}
	if fault != nil {
		reply.Metadata["error"] = ErrorCodeGeneration
	}
	if _, err := p.deps.Conversations.AppendMessage(ctx, turn.Conversation, reply); err != nil {
		log.Error().Err(err).Str("stage", "append_assistant").Msg("assistant message not persisted")
	}
	p.record(ctx, risk, decision, log)
}

// abandon closes out a turn whose client left before a reply existed. The
// user message was admitted and stored, so it still counts.
func (p *Pipeline) abandon(ctx context.Context, risk model.RiskResult, decision model.Decision, log zerolog.Logger) {
	log.Info().Str("decision", string(decision)).Msg("client gone; reply not generated")
	p.record(context.WithoutCancel(ctx), risk, decision, log)
}

func (p *Pipeline) record(ctx context.Context, risk model.RiskResult, decision model.Decision, log zerolog.Logger) {
	if err := p.deps.Metrics.Record(ctx, risk.RiskLevel, decision); err != nil {
		log.Error().Err(err).Str("stage", "metrics").Msg("metrics not recorded")
	}
}

func sourcesOf(chunks []model.ScoredChunk) []Source {
	out := make([]Source, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, Source{ID: c.ID, Score: c.Score, SourceID: c.SourceID()})
	}
	return out
}

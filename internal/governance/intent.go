package governance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/marzetti/salon-assistant/internal/llm"
	"github.com/marzetti/salon-assistant/internal/model"
)

type intentRule struct {
	match      func(string) bool
	intent     model.IntentName
	servicio   *model.Service
	confidence float64
}

// Checked in order; the first match wins.
var intentRules = []intentRule{
	{keywords("precio", "cuesta", "valor", "sale").MatchString, model.IntentPrecio, nil, 0.65},
	{keywords("turno", "agenda", "reserv", "horario", "disponibilidad").MatchString, model.IntentAgenda, nil, 0.65},
	{keywords("curso", "academia", "inscripcion").MatchString, model.IntentCurso, model.ServicePtr(model.ServiceOtro), 0.65},
	{keywords("producto", "shampoo", "serum", "mascara").MatchString, model.IntentProducto, nil, 0.6},
	{keywords("direccion", "ubicacion", "mapa", "contacto").MatchString, model.IntentUbicacion, nil, 0.6},
	{keywords("decolor", "tinte", "balayage", "mechas", "color").MatchString, model.IntentInfoServicio, model.ServicePtr(model.ServiceColoracion), 0.55},
}

// KeywordIntent classifies message without any external call.
func KeywordIntent(message string) model.IntentResult {
	text := fold(message)
	for _, r := range intentRules {
		if r.match(text) {
			return model.IntentResult{Intent: r.intent, Servicio: r.servicio, Confidence: r.confidence}
		}
	}
	return model.IntentResult{Intent: model.IntentInfoServicio, Servicio: model.ServicePtr(model.ServiceOtro), Confidence: 0.5}
}

// Classifier maps a message to the intent taxonomy using the model, and
// falls back to KeywordIntent on any fault.
type Classifier struct {
	gen     llm.Generator
	timeout time.Duration
	log     zerolog.Logger
}

func NewClassifier(gen llm.Generator, timeout time.Duration, log zerolog.Logger) *Classifier {
	return &Classifier{gen: gen, timeout: timeout, log: log}
}

// Attempt runs only the model-backed path.
func (c *Classifier) Attempt(ctx context.Context, message string) Attempt[model.IntentResult] {
	return Try(ctx, c.timeout, func(ctx context.Context) (model.IntentResult, error) {
		if c.gen == nil {
			return model.IntentResult{}, fmt.Errorf("no generator configured")
		}
		out, err := llm.GenerateJSON[model.IntentResult](ctx, c.gen, IntentClassifierPrompt(message))
		if err != nil {
			return out, err
		}
		return validateIntent(out)
	})
}

// Classify never fails.
func (c *Classifier) Classify(ctx context.Context, message string) model.IntentResult {
	a := c.Attempt(ctx, message)
	if !a.OK() {
		c.log.Warn().Err(a.Fault).Str("stage", "classify").Msg("intent classifier degraded; using keyword fallback")
	}
	return a.Or(func() model.IntentResult { return KeywordIntent(message) })
}

func validateIntent(r model.IntentResult) (model.IntentResult, error) {
	if !r.Intent.Valid() {
		return r, fmt.Errorf("%w: unknown intent %q", model.ErrValidation, r.Intent)
	}
	if r.Servicio != nil && !r.Servicio.Valid() {
		return r, fmt.Errorf("%w: unknown servicio %q", model.ErrValidation, *r.Servicio)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return r, fmt.Errorf("%w: confidence %v out of range", model.ErrValidation, r.Confidence)
	}
	return r, nil
}

package governance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marzetti/salon-assistant/internal/llm"
	"github.com/marzetti/salon-assistant/internal/model"
)

type riskRule struct {
	match  func(string) bool
	weight int
	factor string
}

var riskRules = []riskRule{
	{keywords("arde", "ardor", "ampolla", "alerg", "irrit", "caida", "picazon").MatchString, 40, "salud"},
	{keywords("decolor", "mezclar", "perox", "volumen", "oxidante").MatchString, 30, "quimica"},
	{keywords("negro a rubio", "rapar", "alisado permanente", "cambio radical").MatchString, 25, "transformacion"},
	{keywords("garantia", "asegura", "promete", "seguro").MatchString, 20, "garantia"},
	{keywords("hoy", "urgente", "rapido", "en una sesion").MatchString, 10, "urgencia"},
}

// LowRiskReasoning is the reasoning given when no rule matched.
const LowRiskReasoning = "Low risk"

// HeuristicRisk scores message by summing the weight of every matching rule,
// capped at 100.
func HeuristicRisk(message string) model.RiskResult {
	text := fold(message)
	score := 0
	factors := []string{}
	for _, r := range riskRules {
		if r.match(text) {
			score += r.weight
			factors = append(factors, r.factor)
		}
	}
	if score > 100 {
		score = 100
	}
	reasoning := LowRiskReasoning
	if len(factors) > 0 {
		reasoning = "Detected: " + strings.Join(factors, ", ")
	}
	return model.RiskResult{
		RiskScore: score,
		RiskLevel: model.LevelForScore(score),
		Factors:   factors,
		Reasoning: reasoning,
	}
}

// RiskScorer rates a message with the model and falls back to
// HeuristicRisk on any fault.
type RiskScorer struct {
	gen     llm.Generator
	timeout time.Duration
	log     zerolog.Logger
}

func NewRiskScorer(gen llm.Generator, timeout time.Duration, log zerolog.Logger) *RiskScorer {
	return &RiskScorer{gen: gen, timeout: timeout, log: log}
}

func (s *RiskScorer) Attempt(ctx context.Context, message string, intent model.IntentResult) Attempt[model.RiskResult] {
	service := ""
	if intent.Servicio != nil {
		service = string(*intent.Servicio)
	}
	return Try(ctx, s.timeout, func(ctx context.Context) (model.RiskResult, error) {
		if s.gen == nil {
			return model.RiskResult{}, fmt.Errorf("no generator configured")
		}
		out, err := llm.GenerateJSON[model.RiskResult](ctx, s.gen, RiskScorerPrompt(message, string(intent.Intent), service))
		if err != nil {
			return out, err
		}
		return validateRisk(out)
	})
}

// Score never fails.
func (s *RiskScorer) Score(ctx context.Context, message string, intent model.IntentResult) model.RiskResult {
	a := s.Attempt(ctx, message, intent)
	if !a.OK() {
		s.log.Warn().Err(a.Fault).Str("stage", "risk").Msg("risk scorer degraded; using heuristic fallback")
	}
	return a.Or(func() model.RiskResult { return HeuristicRisk(message) })
}

func validateRisk(r model.RiskResult) (model.RiskResult, error) {
	if r.RiskScore < 0 || r.RiskScore > 100 {
		return r, fmt.Errorf("%w: risk score %d out of range", model.ErrValidation, r.RiskScore)
	}
	if !r.RiskLevel.Valid() {
		return r, fmt.Errorf("%w: unknown risk level %q", model.ErrValidation, r.RiskLevel)
	}
	if r.Factors == nil {
		r.Factors = []string{}
	}
	return r, nil
}

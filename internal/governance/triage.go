package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marzetti/salon-assistant/internal/llm"
	"github.com/marzetti/salon-assistant/internal/model"
)

// MaxTriageQuestions bounds a triage reply.
const MaxTriageQuestions = 3

// FallbackQuestions are asked when the model is unavailable.
var FallbackQuestions = []string{
	"Tenes tintura o decoloracion previa? Cuando fue la ultima aplicacion?",
	"Que color tenes actualmente y que resultado queres lograr?",
	"Estas dispuesta a multiples sesiones si es necesario?",
}

const triageIntro = "Para ayudarte mejor necesito unas respuestas:\n- "

// TriageText renders questions as the assistant message.
func TriageText(questions []string) string {
	return triageIntro + strings.Join(questions, "\n- ")
}

// Triage asks clarifying questions before any color advice is given.
type Triage struct {
	gen     llm.Generator
	timeout time.Duration
	log     zerolog.Logger
}

func NewTriage(gen llm.Generator, timeout time.Duration, log zerolog.Logger) *Triage {
	return &Triage{gen: gen, timeout: timeout, log: log}
}

func (t *Triage) Attempt(ctx context.Context, message string) Attempt[[]string] {
	return Try(ctx, t.timeout, func(ctx context.Context) ([]string, error) {
		if t.gen == nil {
			return nil, fmt.Errorf("no generator configured")
		}
		text, err := t.gen.Generate(ctx, TriagePromptColoracion(message, ""))
		if err != nil {
			return nil, err
		}
		qs := parseQuestions(text)
		if len(qs) == 0 {
			return nil, fmt.Errorf("%w: no questions in triage output", model.ErrValidation)
		}
		return qs, nil
	})
}

// Questions returns between one and MaxTriageQuestions questions.
func (t *Triage) Questions(ctx context.Context, message string) []string {
	a := t.Attempt(ctx, message)
	if !a.OK() {
		t.log.Warn().Err(a.Fault).Str("stage", "triage").Msg("triage generator degraded; using fixed questions")
	}
	return a.Or(func() []string { return append([]string(nil), FallbackQuestions...) })
}

var listMarker = regexp.MustCompile(`^(\d+[.)]|[-*•])\s*`)

// parseQuestions accepts a JSON array of strings or one question per line.
// Lines that are not questions are dropped so advice never leaks through.
func parseQuestions(text string) []string {
	var lines []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &lines); err != nil {
		lines = strings.Split(text, "\n")
	}
	out := make([]string, 0, MaxTriageQuestions)
	for _, l := range lines {
		l = strings.TrimSpace(listMarker.ReplaceAllString(strings.TrimSpace(l), ""))
		if l == "" || !strings.Contains(l, "?") {
			continue
		}
		out = append(out, l)
		if len(out) == MaxTriageQuestions {
			break
		}
	}
	return out
}

package governance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marzetti/salon-assistant/internal/llm"
	"github.com/marzetti/salon-assistant/internal/model"
)

func reply(text string) llm.Generator {
	return llm.GeneratorFunc(func(context.Context, string) (string, error) { return text, nil })
}

func failing() llm.Generator {
	return llm.GeneratorFunc(func(context.Context, string) (string, error) { return "", errors.New("quota exceeded") })
}

func slow() llm.Generator {
	return llm.GeneratorFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
}

func TestKeywordIntent(t *testing.T) {
	cases := []struct {
		msg        string
		intent     model.IntentName
		servicio   *model.Service
		confidence float64
	}{
		{"cuanto cuesta el corte", model.IntentPrecio, nil, 0.65},
		{"Quiero sacar un TURNO para el sabado", model.IntentAgenda, nil, 0.65},
		{"como es la inscripción al curso?", model.IntentCurso, model.ServicePtr(model.ServiceOtro), 0.65},
		{"tienen shampoo sin sal?", model.IntentProducto, nil, 0.6},
		{"cual es la dirección?", model.IntentUbicacion, nil, 0.6},
		{"me quiero hacer mechas", model.IntentInfoServicio, model.ServicePtr(model.ServiceColoracion), 0.55},
		{"hola!", model.IntentInfoServicio, model.ServicePtr(model.ServiceOtro), 0.5},
		// price terms win over coloring terms
		{"precio del balayage", model.IntentPrecio, nil, 0.65},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			got := KeywordIntent(tc.msg)
			assert.Equal(t, tc.intent, got.Intent)
			assert.Equal(t, tc.servicio, got.Servicio)
			assert.Equal(t, tc.confidence, got.Confidence)
		})
	}
}

func TestHeuristicRisk(t *testing.T) {
	r := HeuristicRisk("siento ardor")
	assert.Equal(t, 40, r.RiskScore)
	assert.Equal(t, model.RiskMedio, r.RiskLevel)
	assert.Equal(t, []string{"salud"}, r.Factors)
	assert.Equal(t, "Detected: salud", r.Reasoning)

	r = HeuristicRisk("tengo ardor y quiero decolorar")
	assert.Equal(t, 70, r.RiskScore)
	assert.Equal(t, model.RiskAlto, r.RiskLevel)

	r = HeuristicRisk("me arde el cuero cabelludo y quiero decolorar hoy")
	assert.Equal(t, 80, r.RiskScore)
	assert.Equal(t, model.RiskAlto, r.RiskLevel)
	assert.Equal(t, []string{"salud", "quimica", "urgencia"}, r.Factors)

	r = HeuristicRisk("Alergia, quiero pasar de negro a rubio con garantía HOY y mezclar oxidante")
	assert.Equal(t, 100, r.RiskScore)
	assert.Equal(t, model.RiskCritico, r.RiskLevel)
	assert.Len(t, r.Factors, 5)

	r = HeuristicRisk("cuanto cuesta el corte")
	assert.Equal(t, 0, r.RiskScore)
	assert.Equal(t, model.RiskBajo, r.RiskLevel)
	assert.Empty(t, r.Factors)
	assert.Equal(t, LowRiskReasoning, r.Reasoning)
}

func TestLevelBands(t *testing.T) {
	for score, want := range map[int]model.RiskLevel{
		0: model.RiskBajo, 25: model.RiskBajo, 26: model.RiskMedio, 55: model.RiskMedio,
		56: model.RiskAlto, 80: model.RiskAlto, 81: model.RiskCritico, 100: model.RiskCritico,
	} {
		assert.Equal(t, want, model.LevelForScore(score), "score %d", score)
	}
}

func TestClassifier(t *testing.T) {
	ctx := context.Background()
	log := zerolog.Nop()

	c := NewClassifier(reply("```json\n{\"intent\":\"salud\",\"servicio\":null,\"confidence\":0.9}\n```"), time.Second, log)
	got := c.Classify(ctx, "me pica")
	assert.Equal(t, model.IntentSalud, got.Intent)
	assert.Nil(t, got.Servicio)
	assert.Equal(t, 0.9, got.Confidence)

	for name, gen := range map[string]llm.Generator{
		"error":          failing(),
		"garbage":        reply("no se"),
		"unknown intent": reply(`{"intent":"peluqueria","servicio":null,"confidence":0.9}`),
		"bad service":    reply(`{"intent":"precio","servicio":"uñas","confidence":0.9}`),
		"bad confidence": reply(`{"intent":"precio","servicio":null,"confidence":7}`),
		"nil":            nil,
	} {
		t.Run(name, func(t *testing.T) {
			c := NewClassifier(gen, time.Second, log)
			require.False(t, c.Attempt(ctx, "cuanto cuesta el corte").OK())
			assert.Equal(t, KeywordIntent("cuanto cuesta el corte"), c.Classify(ctx, "cuanto cuesta el corte"))
		})
	}

	t.Run("timeout", func(t *testing.T) {
		c := NewClassifier(slow(), 20*time.Millisecond, log)
		start := time.Now()
		got := c.Classify(ctx, "cuanto cuesta el corte")
		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, model.IntentPrecio, got.Intent)
	})
}

func TestRiskScorer(t *testing.T) {
	ctx := context.Background()
	intent := model.IntentResult{Intent: model.IntentInfoServicio, Servicio: model.ServicePtr(model.ServiceColoracion), Confidence: 0.8}

	s := NewRiskScorer(reply(`{"risk_score":45,"risk_level":"medio","factors":["quimica"],"reasoning":"pide decolorar"}`), time.Second, zerolog.Nop())
	got := s.Score(ctx, "quiero decolorar", intent)
	assert.Equal(t, 45, got.RiskScore)
	assert.Equal(t, model.RiskMedio, got.RiskLevel)

	s = NewRiskScorer(reply(`{"risk_score":45,"risk_level":"bajito"}`), time.Second, zerolog.Nop())
	assert.Equal(t, HeuristicRisk("siento ardor"), s.Score(ctx, "siento ardor", intent))

	s = NewRiskScorer(reply(`{"risk_score":140,"risk_level":"critico"}`), time.Second, zerolog.Nop())
	assert.False(t, s.Attempt(ctx, "x", intent).OK())

	s = NewRiskScorer(failing(), time.Second, zerolog.Nop())
	assert.Equal(t, 80, s.Score(ctx, "me arde el cuero cabelludo y quiero decolorar hoy", intent).RiskScore)
}

func TestTriage(t *testing.T) {
	ctx := context.Background()

	tr := NewTriage(reply("1. Tenes tintura previa?\n2) Que color buscas?\nTe recomiendo matizar.\n- Tenes foto de referencia?\n- Estas dispuesta a varias sesiones?"), time.Second, zerolog.Nop())
	qs := tr.Questions(ctx, "quiero cambiar de color")
	assert.Equal(t, []string{"Tenes tintura previa?", "Que color buscas?", "Tenes foto de referencia?"}, qs)

	tr = NewTriage(reply(`["Tenes decoloracion previa?"]`), time.Second, zerolog.Nop())
	assert.Equal(t, []string{"Tenes decoloracion previa?"}, tr.Questions(ctx, "x"))

	tr = NewTriage(reply("Usa oxidante de 20 volumenes."), time.Second, zerolog.Nop())
	assert.Equal(t, FallbackQuestions, tr.Questions(ctx, "x"))

	tr = NewTriage(failing(), time.Second, zerolog.Nop())
	qs = tr.Questions(ctx, "x")
	assert.Equal(t, FallbackQuestions, qs)
	assert.LessOrEqual(t, len(qs), MaxTriageQuestions)

	text := TriageText(FallbackQuestions)
	assert.Equal(t, "Para ayudarte mejor necesito unas respuestas:\n- "+FallbackQuestions[0]+"\n- "+FallbackQuestions[1]+"\n- "+FallbackQuestions[2], text)
}

func TestHandoffMessage(t *testing.T) {
	assert.Equal(t, handoffCritical, HandoffMessage(model.RiskCritico))
	assert.Equal(t, handoffDefault, HandoffMessage(model.RiskAlto))
	assert.Equal(t, handoffDefault, HandoffMessage(model.RiskBajo))
	assert.NotEqual(t, HandoffMessage(model.RiskCritico), HandoffMessage(model.RiskAlto))
}

func TestTry(t *testing.T) {
	a := Try(context.Background(), time.Second, func(context.Context) (int, error) { return 7, nil })
	require.True(t, a.OK())
	require.Equal(t, 7, a.Or(func() int { return 0 }))

	a = Try(context.Background(), 0, func(context.Context) (int, error) { return 0, errors.New("x") })
	require.False(t, a.OK())
	require.Equal(t, 3, a.Or(func() int { return 3 }))
}

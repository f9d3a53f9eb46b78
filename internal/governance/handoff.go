package governance

import "github.com/marzetti/salon-assistant/internal/model"

const (
	handoffCritical = "Esto requiere evaluacion presencial inmediata. Te recomendamos hablar por WhatsApp."
	handoffDefault  = "Te recomiendo una evaluacion presencial antes de avanzar. Podemos coordinar por WhatsApp."
)

// HandoffMessage is the fixed text sent when a conversation is routed to a human.
func HandoffMessage(level model.RiskLevel) string {
	if level == model.RiskCritico {
		return handoffCritical
	}
	return handoffDefault
}

// ApologyMessage is sent when no answer could be produced.
const ApologyMessage = "Perdon, no pude responder en este momento. Proba de nuevo en unos minutos o escribinos por WhatsApp."

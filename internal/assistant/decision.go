// Package assistant runs a chat message through governance, retrieval and
// generation and streams the reply.
package assistant

import "github.com/marzetti/salon-assistant/internal/model"

// Decide picks the response strategy. Rules are evaluated in order:
// elevated risk or a health intent always hands off, coloring with any
// non-low risk is triaged, everything else is answered.
func Decide(intent model.IntentResult, risk model.RiskResult) model.Decision {
	if risk.RiskLevel == model.RiskAlto || risk.RiskLevel == model.RiskCritico || intent.Intent == model.IntentSalud {
		return model.DecisionHandoff
	}
	if intent.Is(model.ServiceColoracion) && risk.RiskLevel != model.RiskBajo {
		return model.DecisionTriage
	}
	return model.DecisionRespond
}

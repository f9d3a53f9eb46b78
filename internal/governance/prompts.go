package governance

import "fmt"

// IntentClassifierPrompt asks the model for a JSON IntentResult.
func IntentClassifierPrompt(message string) string {
	return fmt.Sprintf(`You are a classifier for a hair salon assistant. The user message is in Spanish.
Return ONLY a JSON with this shape:
{
  "intent": "info_servicio" | "precio" | "agenda" | "transformacion" | "quimica" | "salud" | "curso" | "producto" | "ubicacion" | "otro",
  "servicio": "corte" | "coloracion" | "tratamiento" | "novias" | "domicilio" | "otro" | null,
  "confidence": 0.0-1.0
}
Definitions:
info_servicio: what a service includes, duration, aftercare
precio: pricing questions
agenda: booking, schedule, availability
transformacion: radical changes (shave, black to platinum, permanent straightening)
quimica: chemical instructions, mixes, volumes, timing
salud: symptoms (burning, irritation, allergies, shedding)
curso: academy or course info
producto: product info or pricing
ubicacion: address, maps, contact

User message: %s
Output:`, message)
}

// RiskScorerPrompt asks the model for a JSON RiskResult.
func RiskScorerPrompt(message, intent string, service string) string {
	if service == "" {
		service = "null"
	}
	return fmt.Sprintf(`You are a risk evaluator for a hair salon assistant. The user message is in Spanish.
Assign a risk score 0-100.
Risk factors:
+40 health symptoms (burning, blisters, allergy, severe shedding)
+30 chemical instructions or mixing
+25 radical transformation
+20 request for guarantees
+15 recent chemical history (<2 weeks)
+10 missing critical info
+10 urgency (same day, fast)
Levels:
0-25 low, 26-55 medium, 56-80 high, 81-100 critical
Return ONLY JSON:
{
  "risk_score": 0-100,
  "risk_level": "bajo" | "medio" | "alto" | "critico",
  "factors": ["factor1"],
  "reasoning": "short explanation"
}

Context:
Intent: %s
Servicio: %s
Message: %s
Output:`, intent, service, message)
}

// TriagePromptColoracion asks for up to three clarifying questions about a
// color request.
func TriagePromptColoracion(message, knownData string) string {
	return fmt.Sprintf(`You are triaging a hair color request in Spanish (use ASCII, no accents). Ask up to 3 short questions.
Do not give recommendations yet.
Use only relevant questions:
- Tenes tintura o decoloracion previa? Cuando fue la ultima aplicacion?
- Que color tenes actualmente y que resultado queres lograr?
- Tu cuero cabelludo esta sensible hoy (ardor o picazon)?
- Tenes una referencia visual (foto)?
- Estas dispuesta a multiples sesiones si es necesario?

Known data: %s
User message: %s
Return only the questions, one per line.`, knownData, message)
}

// AnswererPrompt grounds the reply on the retrieved context only.
func AnswererPrompt(context, message, riskLevel, intent string) string {
	return fmt.Sprintf(`You are the official assistant for Marzetti hair salon in Mendoza. Reply in Spanish using ASCII (no accents).
Hard rules:
- Use ONLY the information in [CONTEXT]
- If info is missing, say you do not have updated info and offer WhatsApp.
- Never invent prices, guarantees, or technical instructions.
- If risk is high or critical, recommend in-person evaluation and WhatsApp.

[CONTEXT]
%s

[USER]
%s

Risk level: %s
Intent: %s

Response:`, context, message, riskLevel, intent)
}

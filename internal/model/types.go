package model

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation.
type Message struct {
	ID        string                 `json:"id"`
	Role      Role                   `json:"role"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Conversation is one chat session. Messages are append-only and kept in
// chronological order.
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastUpdated    time.Time `json:"last_updated"`
	Messages       []Message `json:"messages"`
}

// Now returns the store-safe current time. Postgres keeps microseconds, so
// everything persisted is truncated to that precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// NewConversation returns an empty conversation created now.
func NewConversation(id string) *Conversation {
	now := Now()
	return &Conversation{ConversationID: id, CreatedAt: now, LastUpdated: now, Messages: []Message{}}
}

// WithMessage returns a copy of c with m appended and LastUpdated advanced.
// LastUpdated never moves backwards.
func (c *Conversation) WithMessage(m Message) *Conversation {
	out := *c
	out.Messages = make([]Message, 0, len(c.Messages)+1)
	out.Messages = append(out.Messages, c.Messages...)
	out.Messages = append(out.Messages, m)
	now := Now()
	if now.Before(c.LastUpdated) {
		now = c.LastUpdated
	}
	if m.Timestamp.After(now) {
		now = m.Timestamp
	}
	out.LastUpdated = now
	return &out
}

// IntentName is the coarse category of a customer question.
type IntentName string

const (
	IntentInfoServicio   IntentName = "info_servicio"
	IntentPrecio         IntentName = "precio"
	IntentAgenda         IntentName = "agenda"
	IntentTransformacion IntentName = "transformacion"
	IntentQuimica        IntentName = "quimica"
	IntentSalud          IntentName = "salud"
	IntentCurso          IntentName = "curso"
	IntentProducto       IntentName = "producto"
	IntentUbicacion      IntentName = "ubicacion"
	IntentOtro           IntentName = "otro"
)

// Intents lists the full intent taxonomy.
var Intents = []IntentName{
	IntentInfoServicio, IntentPrecio, IntentAgenda, IntentTransformacion, IntentQuimica,
	IntentSalud, IntentCurso, IntentProducto, IntentUbicacion, IntentOtro,
}

// Valid reports whether n belongs to the taxonomy.
func (n IntentName) Valid() bool {
	for _, i := range Intents {
		if i == n {
			return true
		}
	}
	return false
}

// Service is the salon service a message refers to.
type Service string

const (
	ServiceCorte       Service = "corte"
	ServiceColoracion  Service = "coloracion"
	ServiceTratamiento Service = "tratamiento"
	ServiceNovias      Service = "novias"
	ServiceDomicilio   Service = "domicilio"
	ServiceOtro        Service = "otro"
)

// Services lists the service taxonomy (null is represented by a nil *Service).
var Services = []Service{ServiceCorte, ServiceColoracion, ServiceTratamiento, ServiceNovias, ServiceDomicilio, ServiceOtro}

// Valid reports whether s belongs to the taxonomy.
func (s Service) Valid() bool {
	for _, v := range Services {
		if v == s {
			return true
		}
	}
	return false
}

// ServicePtr is a small helper for building IntentResult literals.
func ServicePtr(s Service) *Service { return &s }

// IntentResult is the classifier output for a single message.
type IntentResult struct {
	Intent     IntentName `json:"intent"`
	Servicio   *Service   `json:"servicio"`
	Confidence float64    `json:"confidence"`
}

// Is reports whether the result carries service s.
func (r IntentResult) Is(s Service) bool {
	return r.Servicio != nil && *r.Servicio == s
}

// RiskLevel is the discrete escalation tier.
type RiskLevel string

const (
	RiskBajo    RiskLevel = "bajo"
	RiskMedio   RiskLevel = "medio"
	RiskAlto    RiskLevel = "alto"
	RiskCritico RiskLevel = "critico"
)

// Valid reports whether l is a known level.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskBajo, RiskMedio, RiskAlto, RiskCritico:
		return true
	}
	return false
}

// LevelForScore maps a 0-100 score to its band: <=25 bajo, 26-55 medio,
// 56-80 alto, 81-100 critico.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= 81:
		return RiskCritico
	case score >= 56:
		return RiskAlto
	case score >= 26:
		return RiskMedio
	default:
		return RiskBajo
	}
}

// RiskResult is the risk scorer output for a single message.
type RiskResult struct {
	RiskScore int       `json:"risk_score"`
	RiskLevel RiskLevel `json:"risk_level"`
	Factors   []string  `json:"factors"`
	Reasoning string    `json:"reasoning"`
}

// KnowledgeChunk is a retrievable unit of reference text.
type KnowledgeChunk struct {
	ID        string                 `json:"id"`
	Text      string                 `json:"text"`
	Embedding []float32              `json:"-"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// ScoredChunk is a retrieval hit. Score is a similarity in [0,1].
type ScoredChunk struct {
	ID      string                 `json:"id"`
	Text    string                 `json:"text"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

// SourceID returns the payload's source_id, if any.
func (c ScoredChunk) SourceID() string {
	if v, ok := c.Payload["source_id"].(string); ok {
		return v
	}
	return ""
}

// Decision is the response strategy chosen for a message.
type Decision string

const (
	DecisionRespond Decision = "respond"
	DecisionHandoff Decision = "handoff"
	DecisionTriage  Decision = "triage"
)

// DailyMetrics holds the per-day counters.
type DailyMetrics struct {
	Day                string `json:"day"`
	TotalConversations int64  `json:"total_conversations"`
	TotalMessages      int64  `json:"total_messages"`
	TotalHandoffs      int64  `json:"total_handoffs"`
	TotalTriage        int64  `json:"total_triage"`
	RiskBajo           int64  `json:"risk_bajo"`
	RiskMedio          int64  `json:"risk_medio"`
	RiskAlto           int64  `json:"risk_alto"`
	RiskCritico        int64  `json:"risk_critico"`
}

// MetricsDelta is an increment applied to a DailyMetrics row.
type MetricsDelta struct {
	Conversations int64
	Messages      int64
	Handoffs      int64
	Triage        int64
	Bajo          int64
	Medio         int64
	Alto          int64
	Critico       int64
}

// DayFormat is the layout of DailyMetrics.Day.
const DayFormat = "2006-01-02"

package session

// RiskLevel clasifica la severidad del estado emocional detectado.
type RiskLevel string

const (
	RiskNormal  RiskLevel = "normal"
	RiskMedio   RiskLevel = "medio"
	RiskCritico RiskLevel = "critico"
)

// Severity orders risk levels; critico is the maximum and triggers the
// emergency escalation.
func (r RiskLevel) Severity() int {
	switch r {
	case RiskMedio:
		return 1
	case RiskCritico:
		return 2
	default:
		return 0
	}
}

// Critical reports whether the level is the maximum severity.
func (r RiskLevel) Critical() bool {
	return r == RiskCritico
}

// EmotionalState is the most recent belief about the person in the booth,
// replaced wholesale by each state_update push event.
type EmotionalState struct {
	Emotion    string    `json:"emotion"`
	RiskLevel  RiskLevel `json:"risk_level"`
	Confidence float64   `json:"confidence"`
}

// DefaultState is the neutral belief held before any push event arrives.
func DefaultState() EmotionalState {
	return EmotionalState{Emotion: "Neutro", RiskLevel: RiskNormal, Confidence: 0}
}

// Incident is carried by emergency_alert events; the id is only used for
// display and logging.
type Incident struct {
	IncidentID string `json:"incident_id"`
}

package model

// Persona identifies one of the three council evaluators.
type Persona string

const (
	PersonaAdvocate Persona = "advocate"
	PersonaSkeptic  Persona = "skeptic"
	PersonaGuardian Persona = "guardian"
)

// Decision is the council's verdict on a draft.
type Decision string

const (
	DecisionPublish Decision = "PUBLISH"
	DecisionRevise  Decision = "REVISE"
	DecisionKill    Decision = "KILL"
)

// AgentView is one persona's evaluation of a draft.
// Degraded marks views produced by the conservative fallback after an
// evaluation failure; the error is recorded in Reasoning.
type AgentView struct {
	Persona         Persona  `json:"persona"`
	Score           float64  `json:"score"` // 0-100
	Reasoning       string   `json:"reasoning"`
	KeyPoints       []string `json:"key_points,omitempty"`
	Concerns        []string `json:"concerns,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Degraded        bool     `json:"degraded,omitempty"`
}

// CouncilVerdict is the synthesis of the three agent views.
type CouncilVerdict struct {
	Decision      Decision            `json:"decision"`
	Confidence    float64             `json:"confidence"` // 0-1
	Scores        map[Persona]float64 `json:"scores"`
	AverageScore  float64             `json:"average_score"`
	Dissents      []string            `json:"dissents,omitempty"`
	RequiredFixes []string            `json:"required_fixes,omitempty"`
	KillReason    string              `json:"kill_reason,omitempty"`
	DebateSummary string              `json:"debate_summary,omitempty"`
}

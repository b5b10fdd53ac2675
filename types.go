package gatehouse

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Public input and output types for embedding consumers. These are standalone
// structs with no internal imports; conversion helpers live in gatehouse.go
// because that is the only file that sees both sides of the boundary.

// Draft is a candidate article submitted for validation.
type Draft struct {
	ID          uuid.UUID
	Title       string
	Body        string
	Category    string
	ContentType string // news, guide, analysis, review, general
	Urgency     string // critical, high, normal, low
	Sources     []Source
}

// Source references one EvidenceItem supporting the draft.
type Source struct {
	EvidenceID  string
	Title       string
	URL         string
	Domain      string
	Credibility int // 1-10
	Snippet     string
	RetrievedAt time.Time
}

// EvidenceItem is a piece of supporting evidence from research collaborators.
type EvidenceItem struct {
	ID          string
	Title       string
	URL         string
	Domain      string
	Credibility int
	Snippet     string
	RetrievedAt time.Time
}

// Outcome is the terminal result of one validation run.
type Outcome struct {
	DraftID        uuid.UUID
	CorrelationID  string
	Profile        string
	FinalState     string
	QualityScore   float64
	ConsensusScore float64
	ConsensusTier  string
	Decision       string // council decision when one was reached
	Issues         []string
}

// ReviewRequest is one prompt to a fact-check backend.
type ReviewRequest struct {
	System      string
	Prompt      string
	Temperature float64
}

// ReviewResponse is a backend's raw completion plus usage accounting.
type ReviewResponse struct {
	Text           string
	PromptTokens   int
	ResponseTokens int
	Latency        time.Duration
}

// FactChecker is a pluggable fact-check backend. Implementations replace or
// extend the built-in OpenAI/Anthropic/Gemini clients.
type FactChecker interface {
	Name() string
	// Rates returns USD per 1k prompt tokens and per 1k response tokens.
	Rates() (inputRate, outputRate float64)
	Review(ctx context.Context, req ReviewRequest) (ReviewResponse, error)
}

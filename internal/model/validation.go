package model

import "time"

// Action is a fact-check recommendation for a draft.
type Action string

const (
	ActionPublish Action = "PUBLISH"
	ActionReview  Action = "REVIEW"
	ActionReject  Action = "REJECT"
)

// ConsensusTier labels cross-provider agreement strength.
type ConsensusTier string

const (
	TierAuthoritative ConsensusTier = "AUTHORITATIVE"
	TierHigh          ConsensusTier = "HIGH"
	TierDisputed      ConsensusTier = "DISPUTED"
	TierUntrusted     ConsensusTier = "UNTRUSTED"
)

// ValidationTier selects how many providers a fact-check pass consults.
type ValidationTier string

const (
	ValidationSpot     ValidationTier = "spot"     // one cheapest provider
	ValidationStandard ValidationTier = "standard" // two named providers
	ValidationFull     ValidationTier = "full"     // every configured provider
)

// ProviderResponse is one provider's raw adversarial-review output.
// Discarded after parsing.
type ProviderResponse struct {
	Provider       string        `json:"provider"`
	RawText        string        `json:"raw_text"`
	PromptTokens   int           `json:"prompt_tokens"`
	ResponseTokens int           `json:"response_tokens"`
	Latency        time.Duration `json:"latency"`
}

// ValidationResult is a single provider's structured fact-check verdict.
// Immutable once derived from a ProviderResponse.
type ValidationResult struct {
	Provider            string   `json:"provider"`
	ApprovedRegulations []string `json:"approved_regulations"`
	DisputedRegulations []string `json:"disputed_regulations"`
	MissingRegulations  []string `json:"missing_regulations"`
	FactualErrors       []string `json:"factual_errors"`
	Warnings            []string `json:"warnings"`
	CostEstimateValid   bool     `json:"cost_estimate_valid"`
	Confidence          float64  `json:"confidence"` // 0-100
	Action              Action   `json:"action"`
	CorrelationID       string   `json:"correlation_id"`
}

// EnsembleResult is the synthesis of multiple ValidationResults.
type EnsembleResult struct {
	ConsensusScore   float64            `json:"consensus_score"` // 0-100
	ConsensusTier    ConsensusTier      `json:"consensus_tier"`
	MeanConfidence   float64            `json:"mean_confidence"`
	StdDevConfidence float64            `json:"stddev_confidence"`
	Synthesis        ValidationResult   `json:"synthesis"`
	ProviderResults  []ValidationResult `json:"provider_results"`
	Failures         map[string]string  `json:"failures,omitempty"` // provider -> error
	TotalCost        float64            `json:"total_cost"`
	TotalLatency     time.Duration      `json:"total_latency"`
	CorrelationID    string             `json:"correlation_id"`
}

// ActionForConfidence maps a confidence value to an action using the active
// profile's thresholds. Boundaries are inclusive: confidence equal to a
// threshold clears it.
func ActionForConfidence(confidence, publishThreshold, reviewThreshold float64) Action {
	switch {
	case confidence >= publishThreshold:
		return ActionPublish
	case confidence >= reviewThreshold:
		return ActionReview
	default:
		return ActionReject
	}
}

// TierForScore maps a consensus score to its categorical tier.
func TierForScore(score float64) ConsensusTier {
	switch {
	case score >= 90:
		return TierAuthoritative
	case score >= 70:
		return TierHigh
	case score >= 40:
		return TierDisputed
	default:
		return TierUntrusted
	}
}

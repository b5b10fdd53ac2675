package model

import "time"

// Profile is a named policy bundle selected per draft. Loaded from
// configuration at startup and read-only during a run.
type Profile struct {
	Name             string         `json:"name"`
	FastTrack        bool           `json:"fast_track"`
	MinAdvocate      float64        `json:"min_advocate"`
	MinSkeptic       float64        `json:"min_skeptic"`
	MinGuardian      float64        `json:"min_guardian"`
	RequireUnanimous bool           `json:"require_unanimous"`
	KillThreshold    float64        `json:"kill_threshold"`
	GateChecks       []string       `json:"gate_checks,omitempty"`
	MinDeliberation  time.Duration  `json:"min_deliberation"`
	ConsensusTier    ValidationTier `json:"consensus_tier"`
}

// TrustTier classifies a source domain's authoritativeness.
type TrustTier string

const (
	TrustTier1    TrustTier = "tier_1" // national government, central banks, CERTs
	TrustTier2    TrustTier = "tier_2" // wire services
	TrustTier3    TrustTier = "tier_3" // established mainstream outlets
	TrustUntiered TrustTier = "untiered"
)

// Trusted reports whether the tier is strong enough to support fast-tracking.
func (t TrustTier) Trusted() bool {
	return t == TrustTier1 || t == TrustTier2
}

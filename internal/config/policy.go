package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/halcyonpress/gatehouse/internal/model"
)

// QualityThresholds are the per-content-type minimums for the quality gate.
type QualityThresholds struct {
	MinWords      int `yaml:"min_words"`
	MinSections   int `yaml:"min_sections"`
	MinSources    int `yaml:"min_sources"`
	MinRegulatory int `yaml:"min_regulatory"`
}

// ProviderPolicy configures one fact-check backend.
type ProviderPolicy struct {
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	Endpoint    string  `yaml:"endpoint"`
	InputRate   float64 `yaml:"input_rate"`  // USD per 1k prompt tokens
	OutputRate  float64 `yaml:"output_rate"` // USD per 1k response tokens
	Temperature float64 `yaml:"temperature"`
}

// ConsensusPolicy holds ensemble-wide thresholds and tier wiring.
type ConsensusPolicy struct {
	PublishThreshold  float64  `yaml:"publish_threshold"`
	ReviewThreshold   float64  `yaml:"review_threshold"`
	StandardProviders []string `yaml:"standard_providers"` // the two used at the standard tier
}

// ProfilePolicy is the YAML shape of one policy profile. Durations are Go
// duration strings; Policy.Profile converts to the model shape.
type ProfilePolicy struct {
	FastTrack        bool     `yaml:"fast_track"`
	MinAdvocate      float64  `yaml:"min_advocate"`
	MinSkeptic       float64  `yaml:"min_skeptic"`
	MinGuardian      float64  `yaml:"min_guardian"`
	RequireUnanimous bool     `yaml:"require_unanimous"`
	KillThreshold    float64  `yaml:"kill_threshold"`
	GateChecks       []string `yaml:"gate_checks"`
	MinDeliberation  string   `yaml:"min_deliberation"` // Go duration string
	ConsensusTier    string   `yaml:"consensus_tier"`
}

// Policy is the hot-loadable editorial policy: all data, no code.
type Policy struct {
	Quality              map[string]QualityThresholds `yaml:"quality"`
	RegulatoryTerms      []string                     `yaml:"regulatory_terms"`
	BannedPhrases        []string                     `yaml:"banned_phrases"`
	Providers            []ProviderPolicy             `yaml:"providers"`
	Consensus            ConsensusPolicy              `yaml:"consensus"`
	Profiles             map[string]ProfilePolicy     `yaml:"profiles"`
	TrustTiers           map[string][]string          `yaml:"trust_tiers"`
	ExpertDomains        []string                     `yaml:"expert_domains"`
	BreakingContentTypes []string                     `yaml:"breaking_content_types"`
}

// LoadPolicy returns the compiled-in defaults, overlaid with the YAML file at
// path when one is given. Sections present in the file replace the default
// section wholesale.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("config: read policy %s: %w", path, err)
	}
	var file Policy
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Policy{}, fmt.Errorf("config: parse policy %s: %w", path, err)
	}

	if len(file.Quality) > 0 {
		p.Quality = file.Quality
	}
	if len(file.RegulatoryTerms) > 0 {
		p.RegulatoryTerms = file.RegulatoryTerms
	}
	if len(file.BannedPhrases) > 0 {
		p.BannedPhrases = file.BannedPhrases
	}
	if len(file.Providers) > 0 {
		p.Providers = file.Providers
	}
	if file.Consensus.PublishThreshold > 0 {
		p.Consensus = file.Consensus
	}
	if len(file.Profiles) > 0 {
		p.Profiles = file.Profiles
	}
	if len(file.TrustTiers) > 0 {
		p.TrustTiers = file.TrustTiers
	}
	if len(file.ExpertDomains) > 0 {
		p.ExpertDomains = file.ExpertDomains
	}
	if len(file.BreakingContentTypes) > 0 {
		p.BreakingContentTypes = file.BreakingContentTypes
	}
	return p, nil
}

// Profile resolves a named profile into the model shape.
// Unknown names fall back to standard_news.
func (p Policy) Profile(name string) (model.Profile, error) {
	pp, ok := p.Profiles[name]
	if !ok {
		pp, ok = p.Profiles["standard_news"]
		if !ok {
			return model.Profile{}, fmt.Errorf("config: no profile %q and no standard_news fallback", name)
		}
		name = "standard_news"
	}
	var delib time.Duration
	if pp.MinDeliberation != "" {
		d, err := time.ParseDuration(pp.MinDeliberation)
		if err != nil {
			return model.Profile{}, fmt.Errorf("config: profile %s min_deliberation: %w", name, err)
		}
		delib = d
	}
	tier := model.ValidationTier(pp.ConsensusTier)
	if tier == "" {
		tier = model.ValidationStandard
	}
	return model.Profile{
		Name:             name,
		FastTrack:        pp.FastTrack,
		MinAdvocate:      pp.MinAdvocate,
		MinSkeptic:       pp.MinSkeptic,
		MinGuardian:      pp.MinGuardian,
		RequireUnanimous: pp.RequireUnanimous,
		KillThreshold:    pp.KillThreshold,
		GateChecks:       pp.GateChecks,
		MinDeliberation:  delib,
		ConsensusTier:    tier,
	}, nil
}

// DefaultPolicy is the compiled-in policy used when no file is supplied.
// Tuned for a UK-regulated gambling news desk.
func DefaultPolicy() Policy {
	return Policy{
		Quality: map[string]QualityThresholds{
			"news":     {MinWords: 300, MinSections: 3, MinSources: 2, MinRegulatory: 1},
			"guide":    {MinWords: 800, MinSections: 5, MinSources: 3, MinRegulatory: 2},
			"analysis": {MinWords: 600, MinSections: 4, MinSources: 3, MinRegulatory: 1},
			"review":   {MinWords: 500, MinSections: 4, MinSources: 2, MinRegulatory: 1},
			"general":  {MinWords: 250, MinSections: 2, MinSources: 1, MinRegulatory: 0},
		},
		RegulatoryTerms: []string{
			"Gambling Act", "Gambling Commission", "UKGC", "GamStop", "GambleAware",
			"licence condition", "LCCP", "ASA", "CAP Code", "affordability check",
			"white paper", "statutory levy",
		},
		BannedPhrases: []string{
			"color", "favorite", "center", "organization", "license holder's program",
			"check out", "awesome", "you guys",
		},
		Providers: []ProviderPolicy{
			{Name: "openai", Model: "gpt-4o", Endpoint: "https://api.openai.com/v1/chat/completions", InputRate: 0.0025, OutputRate: 0.01, Temperature: 0.2},
			{Name: "anthropic", Model: "claude-sonnet-4-20250514", Endpoint: "https://api.anthropic.com/v1/messages", InputRate: 0.003, OutputRate: 0.015, Temperature: 0.2},
			{Name: "gemini", Model: "gemini-2.0-flash", Endpoint: "https://generativelanguage.googleapis.com/v1beta/models", InputRate: 0.0001, OutputRate: 0.0004, Temperature: 0.2},
		},
		Consensus: ConsensusPolicy{
			PublishThreshold:  85,
			ReviewThreshold:   60,
			StandardProviders: []string{"openai", "anthropic"},
		},
		Profiles: map[string]ProfilePolicy{
			"fast_track": {
				FastTrack:     true,
				MinSkeptic:    60,
				KillThreshold: 40,
				ConsensusTier: "spot",
			},
			"standard_news": {
				MinAdvocate:     70,
				MinSkeptic:      70,
				MinGuardian:     70,
				KillThreshold:   50,
				MinDeliberation: "30m",
				ConsensusTier:   "standard",
			},
			"opinion": {
				MinAdvocate:     65,
				MinSkeptic:      70,
				MinGuardian:     75,
				KillThreshold:   50,
				GateChecks:      []string{"opinion_balance"},
				MinDeliberation: "2h",
				ConsensusTier:   "standard",
			},
			"research": {
				MinAdvocate:      70,
				MinSkeptic:       75,
				MinGuardian:      75,
				RequireUnanimous: true,
				KillThreshold:    50,
				GateChecks:       []string{"expert_citation"},
				MinDeliberation:  "24h",
				ConsensusTier:    "full",
			},
		},
		TrustTiers: map[string][]string{
			"tier_1": {
				"gov.uk", "gamblingcommission.gov.uk", "bankofengland.co.uk",
				"europa.eu", "ncsc.gov.uk", "cisa.gov", "sec.gov", ".gov",
			},
			"tier_2": {
				"reuters.com", "apnews.com", "afp.com", "pa.media",
			},
			"tier_3": {
				"bbc.co.uk", "theguardian.com", "ft.com", "thetimes.co.uk",
				"telegraph.co.uk", "economist.com",
			},
		},
		ExpertDomains: []string{
			".gov", ".gov.uk", ".ac.uk", ".edu", "who.int", "oecd.org",
			"iso.org", "w3.org", "nature.com",
		},
		BreakingContentTypes: []string{"news"},
	}
}

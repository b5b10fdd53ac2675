// Package router classifies a draft's sourcing into trust tiers and selects
// the policy profile that parameterizes the fact-check and council stages.
package router

import (
	"log/slog"
	"strings"

	"github.com/halcyonpress/gatehouse/internal/config"
	"github.com/halcyonpress/gatehouse/internal/model"
)

// Router resolves profiles from the loaded policy.
type Router struct {
	policy config.Policy
	logger *slog.Logger
}

func New(pol config.Policy, logger *slog.Logger) *Router {
	return &Router{policy: pol, logger: logger}
}

// ClassifySource maps a source domain onto a trust tier by longest allow-list
// suffix match. Unmatched domains are untiered.
func (r *Router) ClassifySource(src model.Source) model.TrustTier {
	domain := strings.ToLower(src.Domain)
	if domain == "" {
		domain = hostOf(src.URL)
	}
	best := model.TrustUntiered
	bestLen := 0
	for _, tier := range []model.TrustTier{model.TrustTier1, model.TrustTier2, model.TrustTier3} {
		for _, allowed := range r.policy.TrustTiers[string(tier)] {
			allowed = strings.ToLower(allowed)
			if matchesDomain(domain, allowed) && len(allowed) > bestLen {
				best = tier
				bestLen = len(allowed)
			}
		}
	}
	return best
}

// SelectProfile picks the profile governing this draft's run.
//
// Fast-track requires all three of: a breaking-eligible content type, urgency
// critical or high, and at least one trusted (tier_1 or tier_2) source.
// Urgency without trust, or trust without urgency, falls through to the
// standard profile for the content type.
func (r *Router) SelectProfile(draft model.Draft) model.Profile {
	if r.fastTrackEligible(draft) {
		if p, ok := r.lookup("fast_track"); ok {
			r.logger.Info("router: fast-track selected",
				"draft_id", draft.ID, "urgency", draft.Urgency)
			return p
		}
	}

	name := profileNameFor(draft.ContentType)
	if p, ok := r.lookup(name); ok {
		return p
	}
	if p, ok := r.lookup("standard_news"); ok {
		return p
	}
	return model.Profile{Name: name}
}

func (r *Router) fastTrackEligible(draft model.Draft) bool {
	if draft.Urgency != model.UrgencyCritical && draft.Urgency != model.UrgencyHigh {
		return false
	}
	breaking := false
	for _, ct := range r.policy.BreakingContentTypes {
		if model.ContentType(ct) == draft.ContentType {
			breaking = true
			break
		}
	}
	if !breaking {
		return false
	}
	for _, src := range draft.Sources {
		if r.ClassifySource(src).Trusted() {
			return true
		}
	}
	return false
}

func (r *Router) lookup(name string) (model.Profile, bool) {
	if _, ok := r.policy.Profiles[name]; !ok {
		return model.Profile{}, false
	}
	p, err := r.policy.Profile(name)
	if err != nil {
		r.logger.Warn("router: malformed profile", "profile", name, "error", err)
		return model.Profile{}, false
	}
	return p, true
}

func profileNameFor(ct model.ContentType) string {
	switch ct {
	case model.ContentNews:
		return "standard_news"
	case model.ContentAnalysis, model.ContentReview:
		return "opinion"
	case model.ContentGuide:
		return "research"
	default:
		return "standard_news"
	}
}

func matchesDomain(domain, allowed string) bool {
	if allowed == "" || domain == "" {
		return false
	}
	if strings.HasPrefix(allowed, ".") {
		return strings.HasSuffix(domain, allowed)
	}
	return domain == allowed || strings.HasSuffix(domain, "."+allowed)
}

func hostOf(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '@'); i >= 0 {
		rest = rest[i+1:]
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		rest = rest[:i]
	}
	return strings.ToLower(rest)
}

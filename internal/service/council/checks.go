package council

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/halcyonpress/gatehouse/internal/model"
	"github.com/halcyonpress/gatehouse/internal/service/gates"
)

// Gate check names a profile may request.
const (
	CheckOpinionBalance = "opinion_balance"
	CheckExpertCitation = "expert_citation"
)

var absoluteRe = regexp.MustCompile(`(?i)\b(always|never|guaranteed|undeniably|unquestionably|everyone knows|the only|without doubt)\b`)

var promotionalRe = regexp.MustCompile(`(?i)\b(revolutionary|game-changing|unmatched|unbeatable|must-have|best ever|world-class)\b`)

var balancedRe = regexp.MustCompile(`(?i)\b(however|although|on the other hand|critics|some argue|others contend|by contrast|that said)\b`)

func (s *Service) runGateCheck(name string, draft model.Draft) (gates.Result, bool) {
	switch name {
	case CheckOpinionBalance:
		return opinionBalance(draft), true
	case CheckExpertCitation:
		return expertCitation(draft, s.expertDomains), true
	default:
		return gates.Result{}, false
	}
}

// opinionBalance scores the body 0-100 for balanced language. Absolute and
// promotional phrasing drags the score down, hedged or counterpointed
// language lifts it, and single-vendor sourcing costs a flat penalty.
// Passing requires a score of at least 50.
func opinionBalance(draft model.Draft) gates.Result {
	text := draft.Title + "\n" + draft.Body

	score := 50.0
	absolutes := len(absoluteRe.FindAllString(text, -1))
	promos := len(promotionalRe.FindAllString(text, -1))
	balanced := len(balancedRe.FindAllString(text, -1))
	score -= 10 * float64(absolutes+promos)
	score += 10 * float64(balanced)

	singleVendor := false
	if len(draft.Sources) > 0 {
		domains := map[string]bool{}
		for _, src := range draft.Sources {
			domains[strings.ToLower(src.Domain)] = true
		}
		if len(domains) == 1 {
			singleVendor = true
			score -= 15
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	r := gates.Result{
		Passes: score >= 50,
		Metrics: map[string]float64{
			"balance_score":    score,
			"absolute_phrases": float64(absolutes + promos),
			"balanced_phrases": float64(balanced),
		},
	}
	if !r.Passes {
		r.Issues = append(r.Issues, fmt.Sprintf("opinion balance score %s below 50", formatScore(score)))
		if absolutes+promos > 0 {
			r.Issues = append(r.Issues, fmt.Sprintf("%d absolute or promotional phrases", absolutes+promos))
		}
	}
	if singleVendor {
		r.Issues = append(r.Issues, "all sources share a single domain")
	}
	return r
}

// expertCitation requires at least two sources from authoritative domains
// (government, academic, standards bodies). Vendor-only sourcing is flagged.
func expertCitation(draft model.Draft, expertDomains []string) gates.Result {
	authoritative := 0
	for _, src := range draft.Sources {
		if matchesExpert(src, expertDomains) {
			authoritative++
		}
	}

	r := gates.Result{
		Passes: authoritative >= 2,
		Metrics: map[string]float64{
			"authoritative_sources": float64(authoritative),
			"total_sources":         float64(len(draft.Sources)),
		},
	}
	if !r.Passes {
		r.Issues = append(r.Issues,
			fmt.Sprintf("%d authoritative sources cited, need at least 2", authoritative))
		if authoritative == 0 && len(draft.Sources) > 0 {
			r.Issues = append(r.Issues, "sourcing relies entirely on non-authoritative outlets")
		}
	}
	return r
}

func matchesExpert(src model.Source, expertDomains []string) bool {
	domain := strings.ToLower(src.Domain)
	title := strings.ToLower(src.Title)
	for _, d := range expertDomains {
		d = strings.ToLower(d)
		// Entries starting with a dot are pure suffixes, e.g. ".gov.uk".
		if strings.HasPrefix(d, ".") {
			if strings.HasSuffix(domain, d) {
				return true
			}
			continue
		}
		if domain == d || strings.HasSuffix(domain, "."+d) || strings.Contains(title, d) {
			return true
		}
	}
	return false
}

// Package gates implements the evidence-binding checks: the hard citation
// gate and the soft claim ledger. Both return the shared {passes, issues,
// metrics} contract the pipeline depends on.
package gates

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/halcyonpress/gatehouse/internal/model"
)

// Result is the gate contract shared with external collaborators.
type Result struct {
	Passes  bool               `json:"passes"`
	Issues  []string           `json:"issues,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Citation verifies that every source on the draft binds to a supplied
// evidence item. Hard gate: a dangling reference blocks publication.
func Citation(d model.Draft, evidence []model.EvidenceItem) Result {
	byID := make(map[string]model.EvidenceItem, len(evidence))
	for _, e := range evidence {
		byID[e.ID] = e
	}

	r := Result{Metrics: map[string]float64{}}
	if len(d.Sources) == 0 {
		r.Issues = append(r.Issues, "draft cites no sources")
	}

	bound := 0
	for _, s := range d.Sources {
		e, ok := byID[s.EvidenceID]
		if !ok {
			r.Issues = append(r.Issues, fmt.Sprintf("source %q references unknown evidence id %s", s.Title, s.EvidenceID))
			continue
		}
		if e.URL == "" && s.URL == "" {
			r.Issues = append(r.Issues, fmt.Sprintf("source %s has no url", s.EvidenceID))
			continue
		}
		bound++
	}

	r.Metrics["sources"] = float64(len(d.Sources))
	r.Metrics["bound"] = float64(bound)
	r.Passes = len(r.Issues) == 0
	return r
}

var (
	sentenceRe   = regexp.MustCompile(`[^.!?]+[.!?]`)
	numericRe    = regexp.MustCompile(`\b\d[\d,.]*(%|million|billion|m|bn)?\b`)
	superlatives = []string{
		"biggest", "largest", "first ever", "record", "unprecedented",
		"most popular", "best", "worst", "never before",
	}
	citedMarkerRe = regexp.MustCompile(`\[\d+\]|according to|said|reported|announced|per the`)
)

// ClaimLedger flags confident factual claims with no nearby citation.
// Soft gate: it always passes and only annotates; the issues list feeds the
// draft's review annotations.
func ClaimLedger(d model.Draft) Result {
	r := Result{Passes: true, Metrics: map[string]float64{}}

	claims := 0
	unsupported := 0
	for _, sentence := range sentenceRe.FindAllString(d.Body, -1) {
		lower := strings.ToLower(sentence)
		claim := numericRe.MatchString(sentence)
		if !claim {
			for _, s := range superlatives {
				if strings.Contains(lower, s) {
					claim = true
					break
				}
			}
		}
		if !claim {
			continue
		}
		claims++
		if !citedMarkerRe.MatchString(lower) {
			unsupported++
			trimmed := strings.TrimSpace(sentence)
			if len(trimmed) > 120 {
				trimmed = trimmed[:120] + "…"
			}
			r.Issues = append(r.Issues, "uncited claim: "+trimmed)
		}
	}

	r.Metrics["claims"] = float64(claims)
	r.Metrics["unsupported"] = float64(unsupported)
	return r
}

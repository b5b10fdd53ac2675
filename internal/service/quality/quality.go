// Package quality provides the deterministic structural gate for drafts.
// It is a pure function of the draft: no network calls, identical input
// yields identical output.
package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/halcyonpress/gatehouse/internal/config"
	"github.com/halcyonpress/gatehouse/internal/model"
)

// Report is the gate's structured outcome.
type Report struct {
	Passes   bool     `json:"passes"`
	Score    float64  `json:"score"` // 0-100
	Issues   []string `json:"issues,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	Words      int `json:"words"`
	Sections   int `json:"sections"`
	Sources    int `json:"sources"`
	Regulatory int `json:"regulatory"`
}

// Gate scores drafts against per-content-type structural minimums.
type Gate struct {
	thresholds      map[string]config.QualityThresholds
	regulatoryTerms []string
	bannedPhrases   []string
}

// New builds the gate from the active policy.
func New(pol config.Policy) *Gate {
	return &Gate{
		thresholds:      pol.Quality,
		regulatoryTerms: pol.RegulatoryTerms,
		bannedPhrases:   pol.BannedPhrases,
	}
}

var (
	headingRe    = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
	boldHeaderRe = regexp.MustCompile(`(?m)^\*\*[^*\n]+\*\*\s*$`)
	inlineCiteRe = regexp.MustCompile(`\[(\d+)\]`)
	accordingRe  = regexp.MustCompile(`(?i)\baccording to\b`)
)

// Evaluate scores a draft against its content type's thresholds.
//
// The score is the mean of four ratio-to-threshold components (words,
// sections, sources, regulatory references), each capped at 100, minus a
// 2-point penalty per banned-phrase violation. Violations are warnings;
// missed minimums are issues. The gate passes only when every minimum holds.
func (g *Gate) Evaluate(d model.Draft) Report {
	thr, ok := g.thresholds[string(d.ContentType)]
	if !ok {
		thr = g.thresholds[string(model.ContentGeneral)]
	}

	r := Report{
		Words:      d.WordCount(),
		Sections:   countSections(d.Body),
		Sources:    g.countSources(d),
		Regulatory: g.countRegulatory(d.Body),
	}

	if r.Words < thr.MinWords {
		r.Issues = append(r.Issues, fmt.Sprintf("word count %d below minimum %d for %s", r.Words, thr.MinWords, d.ContentType))
	}
	if r.Sections < thr.MinSections {
		r.Issues = append(r.Issues, fmt.Sprintf("section count %d below minimum %d", r.Sections, thr.MinSections))
	}
	if r.Sources < thr.MinSources {
		r.Issues = append(r.Issues, fmt.Sprintf("distinct sources %d below minimum %d", r.Sources, thr.MinSources))
	}
	if r.Regulatory < thr.MinRegulatory {
		r.Issues = append(r.Issues, fmt.Sprintf("regulatory references %d below minimum %d", r.Regulatory, thr.MinRegulatory))
	}

	violations := g.styleViolations(d)
	for _, v := range violations {
		r.Warnings = append(r.Warnings, "disallowed phrase: "+v)
	}

	score := (ratio(r.Words, thr.MinWords) +
		ratio(r.Sections, thr.MinSections) +
		ratio(r.Sources, thr.MinSources) +
		ratio(r.Regulatory, thr.MinRegulatory)) / 4
	score -= 2 * float64(len(violations))
	if score < 0 {
		score = 0
	}
	r.Score = score
	r.Passes = len(r.Issues) == 0
	return r
}

// ratio maps actual/minimum onto 0-100, capped. A zero minimum is trivially
// satisfied and contributes a full component.
func ratio(actual, minimum int) float64 {
	if minimum <= 0 {
		return 100
	}
	v := 100 * float64(actual) / float64(minimum)
	if v > 100 {
		return 100
	}
	return v
}

func countSections(body string) int {
	return len(headingRe.FindAllString(body, -1)) + len(boldHeaderRe.FindAllString(body, -1))
}

// countSources estimates distinct sources: explicit evidence references plus
// inline citation markers, with attribution phrases as a floor.
func (g *Gate) countSources(d model.Draft) int {
	seen := map[string]bool{}
	for _, s := range d.Sources {
		seen["ev:"+s.EvidenceID] = true
	}
	for _, m := range inlineCiteRe.FindAllStringSubmatch(d.Body, -1) {
		seen["cite:"+m[1]] = true
	}
	n := len(seen)
	if attributions := len(accordingRe.FindAllString(d.Body, -1)); attributions > n {
		n = attributions
	}
	return n
}

func (g *Gate) countRegulatory(body string) int {
	lower := strings.ToLower(body)
	n := 0
	for _, term := range g.regulatoryTerms {
		if strings.Contains(lower, strings.ToLower(term)) {
			n++
		}
	}
	return n
}

func (g *Gate) styleViolations(d model.Draft) []string {
	text := strings.ToLower(d.Title + " " + d.Body)
	var out []string
	for _, phrase := range g.bannedPhrases {
		if containsWord(text, strings.ToLower(phrase)) {
			out = append(out, phrase)
		}
	}
	return out
}

// containsWord matches on word boundaries so "color" does not flag
// "colorado".
func containsWord(text, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// Package model defines the shared data shapes consumed by every pipeline
// stage: drafts and their evidence, fact-check results, council verdicts,
// policy profiles, and the publication lifecycle states.
package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ContentType is the declared editorial format of a draft.
type ContentType string

const (
	ContentNews     ContentType = "news"
	ContentGuide    ContentType = "guide"
	ContentAnalysis ContentType = "analysis"
	ContentReview   ContentType = "review"
	ContentGeneral  ContentType = "general"
)

// Urgency is the writer-declared time sensitivity of a draft.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyNormal   Urgency = "normal"
	UrgencyLow      Urgency = "low"
)

// Draft is an AI-authored candidate article moving through the pipeline.
// Gates mutate it in place: annotations are appended and the quality score
// updated as each stage records its outcome.
type Draft struct {
	ID          uuid.UUID     `json:"id"`
	Title       string        `json:"title"`
	Body        string        `json:"body"`
	Category    string        `json:"category"`
	ContentType ContentType   `json:"content_type"`
	Urgency     Urgency       `json:"urgency"`
	Sources     []Source      `json:"sources"`
	Annotations []string      `json:"annotations,omitempty"`
	QualityScore float64      `json:"quality_score"`
	Status      PipelineState `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Source references one EvidenceItem supporting the draft.
// Immutable once attached.
type Source struct {
	EvidenceID  string    `json:"evidence_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Domain      string    `json:"domain"`
	Credibility int       `json:"credibility"` // 1-10
	Snippet     string    `json:"snippet,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// EvidenceItem is a piece of supporting evidence produced by the research
// collaborators. Sources on a draft must reference evidence ids.
type EvidenceItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Domain      string    `json:"domain"`
	Credibility int       `json:"credibility"`
	Snippet     string    `json:"snippet,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// WordCount returns the number of whitespace-separated words in the body.
func (d Draft) WordCount() int {
	return len(strings.FieldsFunc(d.Body, unicode.IsSpace))
}

// Annotate appends a review annotation to the draft.
func (d *Draft) Annotate(note string) {
	if note == "" {
		return
	}
	d.Annotations = append(d.Annotations, note)
}

// ValidContentTypes lists the recognized content types.
var ValidContentTypes = map[ContentType]bool{
	ContentNews:     true,
	ContentGuide:    true,
	ContentAnalysis: true,
	ContentReview:   true,
	ContentGeneral:  true,
}

// ValidateDraft checks the structural contract a draft must satisfy before
// entering the pipeline. Violations are input errors, never retried.
func ValidateDraft(d Draft) error {
	if d.ID == uuid.Nil {
		return fmt.Errorf("model: draft id is required")
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("model: draft title is required")
	}
	if strings.TrimSpace(d.Body) == "" {
		return fmt.Errorf("model: draft body is required")
	}
	if !ValidContentTypes[d.ContentType] {
		return fmt.Errorf("model: unknown content type %q", d.ContentType)
	}
	for i, s := range d.Sources {
		if s.EvidenceID == "" {
			return fmt.Errorf("model: source %d missing evidence id", i)
		}
		if s.Credibility < 1 || s.Credibility > 10 {
			return fmt.Errorf("model: source %d credibility %d out of range 1-10", i, s.Credibility)
		}
	}
	return nil
}

// ValidateEvidence checks an evidence item supplied by a research collaborator.
func ValidateEvidence(e EvidenceItem) error {
	if e.ID == "" {
		return fmt.Errorf("model: evidence id is required")
	}
	if e.URL != "" {
		if _, err := url.Parse(e.URL); err != nil {
			return fmt.Errorf("model: evidence %s has invalid url: %w", e.ID, err)
		}
	}
	if e.Credibility < 1 || e.Credibility > 10 {
		return fmt.Errorf("model: evidence %s credibility %d out of range 1-10", e.ID, e.Credibility)
	}
	return nil
}

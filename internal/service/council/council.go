// Package council runs the three-persona adversarial deliberation over a
// draft and synthesizes a PUBLISH/REVISE/KILL verdict.
//
// Each persona is an isolated prompt to a completion backend. A failed
// evaluation never aborts the council: the persona degrades to a documented
// neutral score with the error recorded in its reasoning, biased toward
// caution (the skeptic falls lowest).
package council

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/halcyonpress/gatehouse/internal/config"
	"github.com/halcyonpress/gatehouse/internal/extract"
	"github.com/halcyonpress/gatehouse/internal/model"
	"github.com/halcyonpress/gatehouse/internal/provider"
)

// Neutral fallback scores applied when a persona evaluation fails. The
// skeptic fails low so a flaky call can only make the verdict stricter.
const (
	degradedSkepticScore = 50
	degradedDefaultScore = 70
)

var personaPrompts = map[model.Persona]string{
	model.PersonaAdvocate: `You are the story's advocate on an editorial council.
Score the draft 0-100 on timeliness, audience demand, competitive edge, and uniqueness.`,
	model.PersonaSkeptic: `You are the council's skeptic.
Score the draft 0-100 on source quality, claim support, bias, and factual accuracy.
Be harsh: unsupported claims and weak sourcing should drag the score down hard.`,
	model.PersonaGuardian: `You are the council's guardian.
Score the draft 0-100 on tone alignment, audience fit, legal risk, ethical risk, and brand safety.`,
}

const personaSchema = `Respond with a single JSON object:
{"score": 0-100, "reasoning": "...", "key_points": [...], "concerns": [...], "recommendations": [...]}`

// Service convenes the council.
type Service struct {
	client        provider.FactChecker
	expertDomains []string
	logger        *slog.Logger
}

// New creates a council backed by one completion client.
func New(client provider.FactChecker, pol config.Policy, logger *slog.Logger) *Service {
	return &Service{
		client:        client,
		expertDomains: pol.ExpertDomains,
		logger:        logger,
	}
}

// Convene evaluates the draft under the given profile's thresholds and gate
// checks. The returned error is reserved for input problems; evaluation
// failures degrade instead of propagating.
func (s *Service) Convene(ctx context.Context, draft model.Draft, evidence []model.EvidenceItem, profile model.Profile) (model.CouncilVerdict, error) {
	if err := model.ValidateDraft(draft); err != nil {
		return model.CouncilVerdict{}, fmt.Errorf("council: %w", err)
	}

	views := []model.AgentView{
		s.evaluate(ctx, model.PersonaAdvocate, draft, evidence),
		s.evaluate(ctx, model.PersonaSkeptic, draft, evidence),
		s.evaluate(ctx, model.PersonaGuardian, draft, evidence),
	}

	verdict := synthesizeVerdict(views, profile)

	for _, check := range profile.GateChecks {
		result, known := s.runGateCheck(check, draft)
		if !known {
			s.logger.Warn("council: unknown gate check", "check", check)
			continue
		}
		verdict = applyGateCheck(verdict, check, result)
	}

	s.logger.Info("council: verdict",
		"draft_id", draft.ID,
		"decision", verdict.Decision,
		"average_score", verdict.AverageScore,
		"confidence", verdict.Confidence,
	)
	return verdict, nil
}

type personaPayload struct {
	Score           float64  `json:"score"`
	Reasoning       string   `json:"reasoning"`
	KeyPoints       []string `json:"key_points"`
	Concerns        []string `json:"concerns"`
	Recommendations []string `json:"recommendations"`
}

// evaluate runs one persona, degrading to the conservative default on any
// failure.
func (s *Service) evaluate(ctx context.Context, persona model.Persona, draft model.Draft, evidence []model.EvidenceItem) model.AgentView {
	view, err := s.tryEvaluate(ctx, persona, draft, evidence)
	if err == nil {
		return view
	}

	score := float64(degradedDefaultScore)
	if persona == model.PersonaSkeptic {
		score = degradedSkepticScore
	}
	s.logger.Warn("council: persona evaluation degraded",
		"persona", persona, "draft_id", draft.ID, "error", err)
	return model.AgentView{
		Persona:   persona,
		Score:     score,
		Reasoning: fmt.Sprintf("evaluation failed, defaulted to %s: %v", formatScore(score), err),
		Degraded:  true,
	}
}

func (s *Service) tryEvaluate(ctx context.Context, persona model.Persona, draft model.Draft, evidence []model.EvidenceItem) (model.AgentView, error) {
	resp, err := s.client.Review(ctx, provider.Request{
		System:      personaPrompts[persona] + "\n" + personaSchema,
		Prompt:      buildDossier(draft, evidence),
		Temperature: 0.4,
	})
	if err != nil {
		return model.AgentView{}, err
	}

	var payload personaPayload
	if err := extract.Unmarshal(resp.RawText, &payload); err != nil {
		return model.AgentView{}, err
	}
	if payload.Score < 0 {
		payload.Score = 0
	}
	if payload.Score > 100 {
		payload.Score = 100
	}

	return model.AgentView{
		Persona:         persona,
		Score:           payload.Score,
		Reasoning:       payload.Reasoning,
		KeyPoints:       payload.KeyPoints,
		Concerns:        payload.Concerns,
		Recommendations: payload.Recommendations,
	}, nil
}

// buildDossier serializes the draft and its evidence for a persona prompt.
func buildDossier(draft model.Draft, evidence []model.EvidenceItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\nCATEGORY: %s\nTYPE: %s\nURGENCY: %s\n\n", draft.Title, draft.Category, draft.ContentType, draft.Urgency)
	b.WriteString("BODY:\n")
	b.WriteString(draft.Body)
	b.WriteString("\n\nEVIDENCE:\n")
	for _, e := range evidence {
		doc, _ := json.Marshal(e)
		b.Write(doc)
		b.WriteByte('\n')
	}
	return b.String()
}

func formatScore(s float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%.1f", s), ".0")
}

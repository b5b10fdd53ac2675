// Package pipeline is the publication state machine. It runs one draft
// through the ordered gate sequence, short-circuits on the first hard
// failure, and routes the draft to a named failure bucket with enough audit
// detail for a human operator to resume from the right stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/halcyonpress/gatehouse/internal/budget"
	"github.com/halcyonpress/gatehouse/internal/model"
	"github.com/halcyonpress/gatehouse/internal/service/factcheck"
	"github.com/halcyonpress/gatehouse/internal/service/gates"
	"github.com/halcyonpress/gatehouse/internal/service/quality"
	"github.com/halcyonpress/gatehouse/internal/storage"
)

// Validator is the fact-check consensus engine.
type Validator interface {
	ValidateEnsemble(ctx context.Context, prompt, draftInput, correlationID string, tier model.ValidationTier) (model.EnsembleResult, error)
}

// Council convenes the three-persona deliberation.
type Council interface {
	Convene(ctx context.Context, draft model.Draft, evidence []model.EvidenceItem, profile model.Profile) (model.CouncilVerdict, error)
}

// ProfileSelector resolves the policy profile governing a draft's run.
type ProfileSelector interface {
	SelectProfile(draft model.Draft) model.Profile
}

// Store is the persistence surface the machine writes through.
type Store interface {
	SaveDraft(ctx context.Context, d model.Draft) error
	UpdateDraftStatus(ctx context.Context, id uuid.UUID, status model.PipelineState) error
	SaveStageResult(ctx context.Context, draftID uuid.UUID, stage, correlationID string, payload any) error
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

// Stage names recorded in stage results and audit entries.
const (
	StageSchema      = "schema"
	StageQuality     = "quality"
	StageCitation    = "citation"
	StageClaimLedger = "claim_ledger"
	StageFactCheck   = "fact_check"
	StageCouncil     = "council"
	StagePublish     = "publish"
)

// IssueAllProvidersFailed is the audit issue recorded when a fact-check pass
// produced zero usable provider verdicts. Operator tooling keys off it to
// distinguish infrastructure failure from an editorial rejection.
const IssueAllProvidersFailed = "fact-check failed: no provider produced a usable verdict"

// Options tune per-run behavior.
type Options struct {
	// StrictQuality makes a quality-gate failure a hard stop. The default
	// soft mode records failures as warnings and continues.
	StrictQuality bool
}

// Outcome is the terminal result of one pipeline run.
type Outcome struct {
	DraftID       uuid.UUID             `json:"draft_id"`
	CorrelationID string                `json:"correlation_id"`
	Profile       string                `json:"profile"`
	FinalState    model.PipelineState   `json:"final_state"`
	Quality       *quality.Report       `json:"quality,omitempty"`
	Ensemble      *model.EnsembleResult `json:"ensemble,omitempty"`
	Verdict       *model.CouncilVerdict `json:"verdict,omitempty"`
	Issues        []string              `json:"issues,omitempty"`
}

// Machine processes drafts one at a time. Independent machines may run
// concurrently; no draft state is shared between runs.
type Machine struct {
	store     Store
	quality   *quality.Gate
	validator Validator
	council   Council
	profiles  ProfileSelector
	opts      Options
	logger    *slog.Logger
}

func New(store Store, qualityGate *quality.Gate, validator Validator, council Council, profiles ProfileSelector, opts Options, logger *slog.Logger) *Machine {
	return &Machine{
		store:     store,
		quality:   qualityGate,
		validator: validator,
		council:   council,
		profiles:  profiles,
		opts:      opts,
		logger:    logger,
	}
}

// Process runs one draft through the full gate sequence. The returned error
// is reserved for infrastructure failures and cancellation; editorial
// failures terminate in a named bucket on the Outcome instead.
func (m *Machine) Process(ctx context.Context, draft model.Draft, evidence []model.EvidenceItem) (Outcome, error) {
	if draft.ID == uuid.Nil {
		draft.ID = uuid.New()
	}
	correlationID := uuid.NewString()

	out := Outcome{
		DraftID:       draft.ID,
		CorrelationID: correlationID,
	}

	// Schema validation. Malformed input is recorded, never retried.
	if issues := schemaIssues(draft, evidence); len(issues) > 0 {
		out.Issues = issues
		return m.finish(ctx, draft, out, StageSchema, model.StateFailedSchema, issues)
	}

	profile := m.profiles.SelectProfile(draft)
	out.Profile = profile.Name
	m.logger.Info("pipeline: run started",
		"draft_id", draft.ID, "correlation_id", correlationID,
		"profile", profile.Name, "tier", profile.ConsensusTier)

	draft.Status = model.StateDraft
	if err := m.store.SaveDraft(ctx, draft); err != nil {
		return out, fmt.Errorf("pipeline: %w", err)
	}

	// Quality gate. Soft by default: failures annotate, strict mode routes
	// to a retry bucket inferred from the issue text.
	report := m.quality.Evaluate(draft)
	out.Quality = &report
	draft.QualityScore = report.Score
	for _, w := range report.Warnings {
		draft.Annotate("quality: " + w)
	}
	if err := m.store.SaveStageResult(ctx, draft.ID, StageQuality, correlationID, report); err != nil {
		return out, fmt.Errorf("pipeline: %w", err)
	}
	if !report.Passes {
		if m.opts.StrictQuality {
			out.Issues = report.Issues
			return m.finish(ctx, draft, out, StageQuality, inferBucket(report.Issues, model.StateFailedQuality), report.Issues)
		}
		for _, issue := range report.Issues {
			draft.Annotate("quality: " + issue)
		}
	}

	// Citation gate. Hard: unbound sources cannot be fact-checked.
	citation := gates.Citation(draft, evidence)
	if err := m.store.SaveStageResult(ctx, draft.ID, StageCitation, correlationID, citation); err != nil {
		return out, fmt.Errorf("pipeline: %w", err)
	}
	if !citation.Passes {
		out.Issues = citation.Issues
		return m.finish(ctx, draft, out, StageCitation, inferBucket(citation.Issues, model.StateFailedCitation), citation.Issues)
	}

	// Claim ledger. Annotate-only.
	ledger := gates.ClaimLedger(draft)
	for _, issue := range ledger.Issues {
		draft.Annotate("claims: " + issue)
	}
	if err := m.store.SaveStageResult(ctx, draft.ID, StageClaimLedger, correlationID, ledger); err != nil {
		return out, fmt.Errorf("pipeline: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("pipeline: %w", err)
	}

	// Fact-check consensus.
	ensemble, err := m.validator.ValidateEnsemble(ctx, factCheckPrompt(draft), draftInput(draft, evidence), correlationID, profile.ConsensusTier)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// A cancelled run must not move the draft.
		return out, fmt.Errorf("pipeline: %w", err)
	case errors.Is(err, budget.ErrExceeded):
		issues := []string{"daily fact-check budget exhausted"}
		out.Issues = issues
		return m.finish(ctx, draft, out, StageFactCheck, model.StateHold, issues)
	case errors.Is(err, factcheck.ErrAllProvidersFailed):
		issues := []string{IssueAllProvidersFailed}
		out.Issues = issues
		return m.finish(ctx, draft, out, StageFactCheck, model.StateFailedFactCheck, issues)
	default:
		// Unexpected failures degrade to a conservative synthetic result so
		// the run still terminates with an actionable verdict.
		m.logger.Error("pipeline: fact-check error, holding draft",
			"draft_id", draft.ID, "error", err)
		issues := []string{fmt.Sprintf("fact-check error: %v", err)}
		out.Issues = issues
		return m.finish(ctx, draft, out, StageFactCheck, model.StateHold, issues)
	}
	out.Ensemble = &ensemble
	if err := m.store.SaveStageResult(ctx, draft.ID, StageFactCheck, correlationID, ensemble); err != nil {
		return out, fmt.Errorf("pipeline: %w", err)
	}

	if ensemble.Synthesis.Action == model.ActionReject || ensemble.ConsensusTier == model.TierUntrusted {
		issues := append([]string{
			fmt.Sprintf("consensus %s at score %s", ensemble.ConsensusTier, trimScore(ensemble.ConsensusScore)),
		}, ensemble.Synthesis.FactualErrors...)
		out.Issues = issues
		return m.finish(ctx, draft, out, StageFactCheck, model.StateFailedFactCheck, issues)
	}

	// Council deliberation, unless the profile fast-tracks past it.
	if profile.FastTrack {
		if ensemble.Synthesis.Action != model.ActionPublish {
			issues := []string{"fast-track requires an unambiguous publish recommendation"}
			out.Issues = issues
			return m.finish(ctx, draft, out, StageFactCheck, model.StateHold, issues)
		}
		return m.publish(ctx, draft, out)
	}

	verdict, err := m.council.Convene(ctx, draft, evidence, profile)
	if err != nil {
		return out, fmt.Errorf("pipeline: %w", err)
	}
	out.Verdict = &verdict
	if err := m.store.SaveStageResult(ctx, draft.ID, StageCouncil, correlationID, verdict); err != nil {
		return out, fmt.Errorf("pipeline: %w", err)
	}

	switch verdict.Decision {
	case model.DecisionKill:
		issues := []string{verdict.KillReason}
		out.Issues = issues
		return m.finish(ctx, draft, out, StageCouncil, model.StateArchived, issues)
	case model.DecisionRevise:
		out.Issues = verdict.RequiredFixes
		return m.finish(ctx, draft, out, StageCouncil, model.StateRetryDraft, verdict.RequiredFixes)
	}

	if profile.MinDeliberation > 0 {
		draft.Annotate(fmt.Sprintf("deliberation window: %s before publication", profile.MinDeliberation))
	}
	return m.publish(ctx, draft, out)
}

// publish archives the working copy as the publish stage payload, then moves
// the draft to its terminal state. The snapshot keeps the annotated body
// queryable after downstream systems pick up the published article.
func (m *Machine) publish(ctx context.Context, draft model.Draft, out Outcome) (Outcome, error) {
	if err := m.store.SaveStageResult(ctx, draft.ID, StagePublish, out.CorrelationID, draft); err != nil {
		return out, fmt.Errorf("pipeline: %w", err)
	}
	return m.finish(ctx, draft, out, StagePublish, model.StatePublished, nil)
}

// finish persists the draft in its terminal bucket and appends the audit
// record carrying the triggering issues.
func (m *Machine) finish(ctx context.Context, draft model.Draft, out Outcome, stage string, state model.PipelineState, issues []string) (Outcome, error) {
	from := draft.Status
	draft.Status = state
	if err := m.store.SaveDraft(ctx, draft); err != nil {
		return out, fmt.Errorf("pipeline: %w", err)
	}
	if err := m.store.AppendAudit(ctx, storage.AuditEntry{
		DraftID:       draft.ID,
		CorrelationID: out.CorrelationID,
		Stage:         stage,
		FromState:     from,
		ToState:       state,
		Issues:        issues,
	}); err != nil {
		return out, fmt.Errorf("pipeline: %w", err)
	}

	out.FinalState = state
	m.logger.Info("pipeline: run finished",
		"draft_id", draft.ID, "correlation_id", out.CorrelationID,
		"stage", stage, "state", state, "issues", len(issues))
	return out, nil
}

func schemaIssues(draft model.Draft, evidence []model.EvidenceItem) []string {
	var issues []string
	if err := model.ValidateDraft(draft); err != nil {
		issues = append(issues, err.Error())
	}
	for _, e := range evidence {
		if err := model.ValidateEvidence(e); err != nil {
			issues = append(issues, err.Error())
		}
	}
	return issues
}

// inferBucket routes a failure to a retry bucket when the issue text points
// at a recoverable cause: sourcing problems re-enter research, length and
// structure problems re-enter drafting. Anything ambiguous takes fallback.
func inferBucket(issues []string, fallback model.PipelineState) model.PipelineState {
	research := false
	redraft := false
	for _, issue := range issues {
		lower := strings.ToLower(issue)
		switch {
		case strings.Contains(lower, "source") || strings.Contains(lower, "evidence") || strings.Contains(lower, "citation"):
			research = true
		case strings.Contains(lower, "word") || strings.Contains(lower, "section"):
			redraft = true
		}
	}
	switch {
	case research:
		return model.StateRetryResearch
	case redraft:
		return model.StateRetryDraft
	default:
		return fallback
	}
}

func factCheckPrompt(draft model.Draft) string {
	return fmt.Sprintf("Review this %s draft titled %q for regulatory and factual accuracy.", draft.ContentType, draft.Title)
}

func draftInput(draft model.Draft, evidence []model.EvidenceItem) string {
	var b strings.Builder
	b.WriteString(draft.Body)
	if len(evidence) > 0 {
		b.WriteString("\n\nEVIDENCE:\n")
		for _, e := range evidence {
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", e.ID, e.Title, e.URL)
		}
	}
	return b.String()
}

func trimScore(v float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%.1f", v), ".0")
}

package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonpress/gatehouse/internal/budget"
	"github.com/halcyonpress/gatehouse/internal/config"
	"github.com/halcyonpress/gatehouse/internal/model"
	"github.com/halcyonpress/gatehouse/internal/service/factcheck"
	"github.com/halcyonpress/gatehouse/internal/service/pipeline"
	"github.com/halcyonpress/gatehouse/internal/service/quality"
	"github.com/halcyonpress/gatehouse/internal/storage"
)

type memStore struct {
	drafts map[uuid.UUID]model.Draft
	stages []string
	audits []storage.AuditEntry
}

func newMemStore() *memStore {
	return &memStore{drafts: map[uuid.UUID]model.Draft{}}
}

func (s *memStore) SaveDraft(ctx context.Context, d model.Draft) error {
	s.drafts[d.ID] = d
	return nil
}

func (s *memStore) UpdateDraftStatus(ctx context.Context, id uuid.UUID, status model.PipelineState) error {
	d, ok := s.drafts[id]
	if !ok {
		return storage.ErrNotFound
	}
	d.Status = status
	s.drafts[id] = d
	return nil
}

func (s *memStore) SaveStageResult(ctx context.Context, draftID uuid.UUID, stage, correlationID string, payload any) error {
	s.stages = append(s.stages, stage)
	return nil
}

func (s *memStore) AppendAudit(ctx context.Context, e storage.AuditEntry) error {
	s.audits = append(s.audits, e)
	return nil
}

type stubValidator struct {
	result model.EnsembleResult
	err    error
	calls  int
}

func (v *stubValidator) ValidateEnsemble(ctx context.Context, prompt, draftInput, correlationID string, tier model.ValidationTier) (model.EnsembleResult, error) {
	v.calls++
	if v.err != nil {
		return model.EnsembleResult{}, v.err
	}
	r := v.result
	r.CorrelationID = correlationID
	return r, nil
}

type stubCouncil struct {
	verdict model.CouncilVerdict
	calls   int
}

func (c *stubCouncil) Convene(ctx context.Context, draft model.Draft, evidence []model.EvidenceItem, profile model.Profile) (model.CouncilVerdict, error) {
	c.calls++
	return c.verdict, nil
}

type stubProfiles struct{ profile model.Profile }

func (p stubProfiles) SelectProfile(model.Draft) model.Profile { return p.profile }

func ensemble(score float64, action model.Action) model.EnsembleResult {
	return model.EnsembleResult{
		ConsensusScore: score,
		ConsensusTier:  model.TierForScore(score),
		Synthesis:      model.ValidationResult{Confidence: score, Action: action},
	}
}

func publishVerdict() model.CouncilVerdict {
	return model.CouncilVerdict{Decision: model.DecisionPublish, Confidence: 0.85, AverageScore: 85}
}

const newsBody = `# Commission opens affordability consultation

The Gambling Commission opened a consultation on affordability checks today,
inviting responses from operators and consumer groups over twelve weeks [1].

## What changes

The proposals would set frictionless checks at moderate spending levels and
deeper assessments for the highest-spending accounts, following the white
paper commitments [2].

## Industry reaction

Trade bodies said the thresholds were workable but warned about data sharing.
Consumer groups welcomed the move and pressed for faster implementation.
Analysts expect the licence condition changes to land next year, with the
statutory levy consultation to follow. Operators have begun preparing their
compliance teams for the new regime, and several have already trialled
voluntary checks at lower thresholds than the Gambling Commission proposes.
The consultation closes in March and final rules are expected by autumn.
Observers note the UKGC has signalled flexibility on implementation dates,
and smaller operators are seeking transitional arrangements to spread the
cost of new tooling across two compliance cycles. A response document is
promised within three months of the closing date, and the Commission says
enforcement will focus on the highest-risk operators first, with a light
touch for those showing good faith efforts during the transition period.
Lawyers advising the sector say the drafting of the new licence condition
will matter more than the headline thresholds, because definitions of net
deposits and rolling windows decide how many accounts are actually affected
in practice across the market as a whole over the coming years ahead now.`

func validDraft() (model.Draft, []model.EvidenceItem) {
	d := model.Draft{
		ID:          uuid.New(),
		Title:       "Commission opens affordability consultation",
		Body:        newsBody,
		Category:    "regulation",
		ContentType: model.ContentNews,
		Urgency:     model.UrgencyNormal,
		Sources: []model.Source{
			{EvidenceID: "ev-1", Title: "Consultation notice", URL: "https://gamblingcommission.gov.uk/c", Domain: "gamblingcommission.gov.uk", Credibility: 9},
			{EvidenceID: "ev-2", Title: "White paper", URL: "https://gov.uk/wp", Domain: "gov.uk", Credibility: 9},
		},
	}
	ev := []model.EvidenceItem{
		{ID: "ev-1", Title: "Consultation notice", URL: "https://gamblingcommission.gov.uk/c", Domain: "gamblingcommission.gov.uk", Credibility: 9},
		{ID: "ev-2", Title: "White paper", URL: "https://gov.uk/wp", Domain: "gov.uk", Credibility: 9},
	}
	return d, ev
}

func newMachine(store *memStore, v *stubValidator, c *stubCouncil, profile model.Profile, opts pipeline.Options) *pipeline.Machine {
	return pipeline.New(store, quality.New(config.DefaultPolicy()), v, c, stubProfiles{profile}, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func standardProfile() model.Profile {
	return model.Profile{Name: "standard_news", MinAdvocate: 70, MinSkeptic: 70, MinGuardian: 70, KillThreshold: 50, ConsensusTier: model.ValidationStandard}
}

func TestProcess_HappyPathPublishes(t *testing.T) {
	store := newMemStore()
	v := &stubValidator{result: ensemble(92, model.ActionPublish)}
	c := &stubCouncil{verdict: publishVerdict()}
	m := newMachine(store, v, c, standardProfile(), pipeline.Options{})

	d, ev := validDraft()
	out, err := m.Process(context.Background(), d, ev)
	require.NoError(t, err)

	assert.Equal(t, model.StatePublished, out.FinalState)
	assert.Equal(t, model.StatePublished, store.drafts[d.ID].Status)
	assert.Equal(t, []string{"quality", "citation", "claim_ledger", "fact_check", "council", "publish"}, store.stages)
	require.Len(t, store.audits, 1)
	assert.Equal(t, pipeline.StagePublish, store.audits[0].Stage)
	assert.Equal(t, 1, c.calls)
}

func TestProcess_MalformedDraftFailsSchema(t *testing.T) {
	store := newMemStore()
	v := &stubValidator{result: ensemble(92, model.ActionPublish)}
	m := newMachine(store, v, &stubCouncil{}, standardProfile(), pipeline.Options{})

	out, err := m.Process(context.Background(), model.Draft{Title: "no body"}, nil)
	require.NoError(t, err)

	assert.Equal(t, model.StateFailedSchema, out.FinalState)
	assert.NotEmpty(t, out.Issues)
	assert.Equal(t, 0, v.calls, "malformed input never reaches providers")
}

func TestProcess_DanglingSourceRoutesToResearch(t *testing.T) {
	store := newMemStore()
	v := &stubValidator{result: ensemble(92, model.ActionPublish)}
	m := newMachine(store, v, &stubCouncil{}, standardProfile(), pipeline.Options{})

	d, _ := validDraft()
	out, err := m.Process(context.Background(), d, nil)
	require.NoError(t, err)

	assert.Equal(t, model.StateRetryResearch, out.FinalState)
	assert.Equal(t, 0, v.calls)
	require.NotEmpty(t, store.audits)
	assert.Equal(t, pipeline.StageCitation, store.audits[len(store.audits)-1].Stage)
}

func TestProcess_StrictQualityRoutesShortDraftToRedraft(t *testing.T) {
	store := newMemStore()
	v := &stubValidator{result: ensemble(92, model.ActionPublish)}
	m := newMachine(store, v, &stubCouncil{}, standardProfile(), pipeline.Options{StrictQuality: true})

	d, ev := validDraft()
	d.Body = "# Short\n\n## Still short\n\n## Tiny\n\nThe Gambling Commission said little [1] today [2]."
	out, err := m.Process(context.Background(), d, ev)
	require.NoError(t, err)

	assert.Equal(t, model.StateRetryDraft, out.FinalState)
	assert.Equal(t, 0, v.calls)
}

func TestProcess_BudgetExhaustionHolds(t *testing.T) {
	store := newMemStore()
	v := &stubValidator{err: budget.ErrExceeded}
	m := newMachine(store, v, &stubCouncil{}, standardProfile(), pipeline.Options{})

	d, ev := validDraft()
	out, err := m.Process(context.Background(), d, ev)
	require.NoError(t, err)
	assert.Equal(t, model.StateHold, out.FinalState)
}

func TestProcess_AllProvidersFailedBucket(t *testing.T) {
	store := newMemStore()
	v := &stubValidator{err: factcheck.ErrAllProvidersFailed}
	m := newMachine(store, v, &stubCouncil{}, standardProfile(), pipeline.Options{})

	d, ev := validDraft()
	out, err := m.Process(context.Background(), d, ev)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailedFactCheck, out.FinalState)
}

func TestProcess_RejectedConsensusFails(t *testing.T) {
	store := newMemStore()
	v := &stubValidator{result: ensemble(30, model.ActionReject)}
	c := &stubCouncil{verdict: publishVerdict()}
	m := newMachine(store, v, c, standardProfile(), pipeline.Options{})

	d, ev := validDraft()
	out, err := m.Process(context.Background(), d, ev)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailedFactCheck, out.FinalState)
	assert.Equal(t, 0, c.calls, "rejected drafts never reach the council")
}

func TestProcess_CouncilKillArchives(t *testing.T) {
	store := newMemStore()
	v := &stubValidator{result: ensemble(92, model.ActionPublish)}
	c := &stubCouncil{verdict: model.CouncilVerdict{Decision: model.DecisionKill, KillReason: "skeptic score 30 below kill threshold 50"}}
	m := newMachine(store, v, c, standardProfile(), pipeline.Options{})

	d, ev := validDraft()
	out, err := m.Process(context.Background(), d, ev)
	require.NoError(t, err)
	assert.Equal(t, model.StateArchived, out.FinalState)
	assert.Contains(t, out.Issues[0], "skeptic")
}

func TestProcess_CouncilReviseRetries(t *testing.T) {
	store := newMemStore()
	v := &stubValidator{result: ensemble(92, model.ActionPublish)}
	c := &stubCouncil{verdict: model.CouncilVerdict{Decision: model.DecisionRevise, RequiredFixes: []string{"balance the second section"}}}
	m := newMachine(store, v, c, standardProfile(), pipeline.Options{})

	d, ev := validDraft()
	out, err := m.Process(context.Background(), d, ev)
	require.NoError(t, err)
	assert.Equal(t, model.StateRetryDraft, out.FinalState)
	assert.Equal(t, []string{"balance the second section"}, out.Issues)
}

func TestProcess_FastTrackBypassesCouncil(t *testing.T) {
	profile := model.Profile{Name: "fast_track", FastTrack: true, ConsensusTier: model.ValidationSpot}

	store := newMemStore()
	v := &stubValidator{result: ensemble(95, model.ActionPublish)}
	c := &stubCouncil{}
	m := newMachine(store, v, c, profile, pipeline.Options{})

	d, ev := validDraft()
	out, err := m.Process(context.Background(), d, ev)
	require.NoError(t, err)
	assert.Equal(t, model.StatePublished, out.FinalState)
	assert.Equal(t, 0, c.calls)

	// An equivocal recommendation is not fast-trackable.
	store = newMemStore()
	v = &stubValidator{result: ensemble(75, model.ActionReview)}
	m = newMachine(store, v, c, profile, pipeline.Options{})
	out, err = m.Process(context.Background(), d, ev)
	require.NoError(t, err)
	assert.Equal(t, model.StateHold, out.FinalState)
}

func TestProcess_CancelledRunDoesNotMoveDraft(t *testing.T) {
	store := newMemStore()
	v := &stubValidator{err: context.Canceled}
	m := newMachine(store, v, &stubCouncil{}, standardProfile(), pipeline.Options{})

	d, ev := validDraft()
	_, err := m.Process(context.Background(), d, ev)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, model.StateDraft, store.drafts[d.ID].Status, "cancelled runs leave the draft where it was")
}

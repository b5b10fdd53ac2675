package factcheck_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonpress/gatehouse/internal/budget"
	"github.com/halcyonpress/gatehouse/internal/config"
	"github.com/halcyonpress/gatehouse/internal/model"
	"github.com/halcyonpress/gatehouse/internal/provider"
	"github.com/halcyonpress/gatehouse/internal/service/factcheck"
)

// stubChecker is a scripted provider: each call pops the next error, then
// the canned payload is returned.
type stubChecker struct {
	name    string
	inRate  float64
	payload map[string]any
	errs    []error
	calls   int
}

func (s *stubChecker) Name() string              { return s.name }
func (s *stubChecker) Rates() (float64, float64) { return s.inRate, s.inRate * 3 }

func (s *stubChecker) Review(ctx context.Context, req provider.Request) (model.ProviderResponse, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return model.ProviderResponse{}, err
		}
	}
	raw, _ := json.Marshal(s.payload)
	return model.ProviderResponse{
		Provider:       s.name,
		RawText:        "```json\n" + string(raw) + "\n```",
		PromptTokens:   1000,
		ResponseTokens: 500,
		Latency:        5 * time.Millisecond,
	}, nil
}

func payload(confidence float64, approved []string, errors []string, costValid bool) map[string]any {
	return map[string]any{
		"approved_regulations": approved,
		"factual_errors":       errors,
		"cost_estimate_valid":  costValid,
		"confidence":           confidence,
	}
}

func newService(t *testing.T, tracker *budget.Tracker, checkers ...provider.FactChecker) *factcheck.Service {
	t.Helper()
	if tracker == nil {
		tracker = budget.NewTracker(0)
	}
	return factcheck.New(checkers, config.DefaultPolicy(), tracker,
		factcheck.Options{Timeout: time.Second, BackoffBase: time.Millisecond, BackoffCap: 2 * time.Millisecond},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestValidateEnsemble_SingleProviderConsensusEqualsConfidence(t *testing.T) {
	s := newService(t, nil, &stubChecker{name: "gemini", inRate: 0.0001, payload: payload(77.5, []string{"UKGC"}, nil, true)})

	res, err := s.ValidateEnsemble(context.Background(), "check", "draft", "corr-1", model.ValidationSpot)
	require.NoError(t, err)
	assert.Equal(t, 77.5, res.ConsensusScore)
	assert.Equal(t, model.TierHigh, res.ConsensusTier)
	assert.Equal(t, model.ActionReview, res.Synthesis.Action)
	assert.Equal(t, "corr-1", res.Synthesis.CorrelationID)
}

func TestValidateEnsemble_SpotPicksCheapest(t *testing.T) {
	cheap := &stubChecker{name: "gemini", inRate: 0.0001, payload: payload(90, nil, nil, true)}
	costly := &stubChecker{name: "openai", inRate: 0.0025, payload: payload(90, nil, nil, true)}
	s := newService(t, nil, costly, cheap)

	_, err := s.ValidateEnsemble(context.Background(), "p", "d", "c", model.ValidationSpot)
	require.NoError(t, err)
	assert.Equal(t, 1, cheap.calls)
	assert.Equal(t, 0, costly.calls)
}

func TestValidateEnsemble_StandardUsesNamedPair(t *testing.T) {
	a := &stubChecker{name: "openai", inRate: 1, payload: payload(90, nil, nil, true)}
	b := &stubChecker{name: "anthropic", inRate: 1, payload: payload(90, nil, nil, true)}
	c := &stubChecker{name: "gemini", inRate: 1, payload: payload(90, nil, nil, true)}
	s := newService(t, nil, a, b, c)

	_, err := s.ValidateEnsemble(context.Background(), "p", "d", "c", model.ValidationStandard)
	require.NoError(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 0, c.calls)
}

func TestValidateEnsemble_FullAgreementScoresHigh(t *testing.T) {
	regs := []string{"Gambling Act 2005", "LCCP 3.4.1"}
	a := &stubChecker{name: "openai", inRate: 1, payload: payload(90, regs, nil, true)}
	b := &stubChecker{name: "anthropic", inRate: 1, payload: payload(90, regs, nil, true)}
	c := &stubChecker{name: "gemini", inRate: 1, payload: payload(90, regs, nil, true)}
	s := newService(t, nil, a, b, c)

	res, err := s.ValidateEnsemble(context.Background(), "p", "d", "c", model.ValidationFull)
	require.NoError(t, err)
	// Identical confidences, sets, and votes: every component maxes out.
	assert.Equal(t, 100.0, res.ConsensusScore)
	assert.Equal(t, model.TierAuthoritative, res.ConsensusTier)
	assert.Equal(t, model.ActionPublish, res.Synthesis.Action)
	assert.Equal(t, regs, res.Synthesis.ApprovedRegulations)
}

func TestValidateEnsemble_ScoreNonIncreasingInErrors(t *testing.T) {
	run := func(errs []string) float64 {
		a := &stubChecker{name: "openai", inRate: 1, payload: payload(80, nil, errs, true)}
		b := &stubChecker{name: "anthropic", inRate: 1, payload: payload(80, nil, nil, true)}
		s := newService(t, nil, a, b)
		res, err := s.ValidateEnsemble(context.Background(), "p", "d", "c", model.ValidationStandard)
		require.NoError(t, err)
		return res.ConsensusScore
	}

	prev := run(nil)
	for n := 1; n <= 8; n++ {
		errs := make([]string, n)
		for i := range errs {
			errs[i] = fmt.Sprintf("error %d", i)
		}
		score := run(errs)
		assert.LessOrEqual(t, score, prev, "score must not rise as distinct errors grow (n=%d)", n)
		prev = score
	}

	// Penalty caps at 30 points: 6 errors and 8 errors score the same.
	assert.Equal(t,
		run([]string{"e0", "e1", "e2", "e3", "e4", "e5"}),
		run([]string{"e0", "e1", "e2", "e3", "e4", "e5", "e6", "e7"}))
}

func TestValidateEnsemble_PartialFailureTolerated(t *testing.T) {
	ok := &stubChecker{name: "openai", inRate: 1, payload: payload(88, nil, nil, true)}
	bad := &stubChecker{name: "anthropic", inRate: 1, errs: []error{
		&provider.StatusError{Provider: "anthropic", Code: 401, Body: "bad key"},
	}}
	s := newService(t, nil, ok, bad)

	res, err := s.ValidateEnsemble(context.Background(), "p", "d", "c", model.ValidationStandard)
	require.NoError(t, err)
	assert.Equal(t, 88.0, res.ConsensusScore, "one success degrades to single-provider consensus")
	assert.Contains(t, res.Failures, "anthropic")
	assert.Equal(t, 1, bad.calls, "auth failure is not retried")
}

func TestValidateEnsemble_TransientRetried(t *testing.T) {
	flaky := &stubChecker{name: "gemini", inRate: 0.0001, payload: payload(95, nil, nil, true), errs: []error{
		&provider.StatusError{Provider: "gemini", Code: 503, Body: "overloaded"},
		&provider.StatusError{Provider: "gemini", Code: 429, Body: "slow down"},
		nil,
	}}
	s := newService(t, nil, flaky)

	res, err := s.ValidateEnsemble(context.Background(), "p", "d", "c", model.ValidationSpot)
	require.NoError(t, err)
	assert.Equal(t, 95.0, res.ConsensusScore)
	assert.Equal(t, 3, flaky.calls)
}

func TestValidateEnsemble_AllProvidersFailed(t *testing.T) {
	bad := &stubChecker{name: "openai", inRate: 1, errs: []error{
		&provider.StatusError{Provider: "openai", Code: 400, Body: "malformed"},
	}}
	s := newService(t, nil, bad)

	_, err := s.ValidateEnsemble(context.Background(), "p", "d", "c", model.ValidationFull)
	assert.ErrorIs(t, err, factcheck.ErrAllProvidersFailed)
}

func TestValidateEnsemble_BudgetRefusedBeforeContact(t *testing.T) {
	tracker := budget.NewTracker(0.01)
	tracker.Charge(0.01)
	stub := &stubChecker{name: "openai", inRate: 1, payload: payload(90, nil, nil, true)}
	s := newService(t, tracker, stub)

	_, err := s.ValidateEnsemble(context.Background(), "p", "d", "c", model.ValidationSpot)
	assert.ErrorIs(t, err, budget.ErrExceeded)
	assert.Equal(t, 0, stub.calls, "no provider contacted once the cap is hit")
}

func TestValidateEnsemble_ChargesSpend(t *testing.T) {
	tracker := budget.NewTracker(100)
	// 1000 prompt tokens at 0.002 + 500 response tokens at 0.006.
	stub := &stubChecker{name: "openai", inRate: 0.002, payload: payload(90, nil, nil, true)}
	s := newService(t, tracker, stub)

	res, err := s.ValidateEnsemble(context.Background(), "p", "d", "c", model.ValidationSpot)
	require.NoError(t, err)
	assert.InDelta(t, 0.005, res.TotalCost, 1e-9)
	assert.InDelta(t, 0.005, tracker.Spent(), 1e-9)
}

func TestValidateEnsemble_SynthesisUnionsAndMajority(t *testing.T) {
	a := &stubChecker{name: "openai", inRate: 1, payload: payload(70, []string{"UKGC"}, []string{"stale date"}, true)}
	b := &stubChecker{name: "anthropic", inRate: 1, payload: payload(60, []string{"UKGC", "ASA"}, nil, false)}
	c := &stubChecker{name: "gemini", inRate: 1, payload: payload(65, []string{"UKGC"}, nil, false)}
	s := newService(t, nil, a, b, c)

	res, err := s.ValidateEnsemble(context.Background(), "p", "d", "c", model.ValidationFull)
	require.NoError(t, err)

	assert.Equal(t, []string{"ASA", "UKGC"}, res.Synthesis.ApprovedRegulations, "union, sorted")
	assert.Equal(t, []string{"stale date"}, res.Synthesis.FactualErrors)
	assert.False(t, res.Synthesis.CostEstimateValid, "2 of 3 voted invalid")
	assert.InDelta(t, 65.0, res.Synthesis.Confidence, 1e-9)
	assert.Equal(t, model.ActionReview, res.Synthesis.Action)
}

func TestValidateEnsemble_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stub := &stubChecker{name: "openai", inRate: 1, payload: payload(90, nil, nil, true)}
	s := newService(t, nil, stub)

	_, err := s.ValidateEnsemble(ctx, "p", "d", "c", model.ValidationSpot)
	assert.ErrorIs(t, err, context.Canceled)
}

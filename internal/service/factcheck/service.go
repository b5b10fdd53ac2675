// Package factcheck implements the multi-provider adversarial fact-check
// consensus engine.
//
// One validation pass fans out to the providers selected by the validation
// tier, parses each free-text response into a structured verdict, and
// synthesizes a consensus score and result. Individual provider failures are
// captured, not fatal; zero successes is.
package factcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/halcyonpress/gatehouse/internal/budget"
	"github.com/halcyonpress/gatehouse/internal/config"
	"github.com/halcyonpress/gatehouse/internal/extract"
	"github.com/halcyonpress/gatehouse/internal/model"
	"github.com/halcyonpress/gatehouse/internal/provider"
	"github.com/halcyonpress/gatehouse/internal/telemetry"
)

// ErrAllProvidersFailed is returned when no provider produced a usable
// verdict. It is fatal for the validation pass and never downgrades to a
// silent pass.
var ErrAllProvidersFailed = errors.New("factcheck: all providers failed")

const systemPrompt = `You are an adversarial fact checker for a regulated gambling news desk.
Attack the draft: hunt for factual errors, misstated regulations, and invalid cost estimates.
Respond with a single JSON object:
{"approved_regulations": [...], "disputed_regulations": [...], "missing_regulations": [...],
 "factual_errors": [...], "warnings": [...], "cost_estimate_valid": true|false,
 "confidence": 0-100}`

// Options tunes provider call behavior. Zero values take the defaults used
// in production.
type Options struct {
	Timeout     time.Duration // per provider call, default 30s
	MaxRetries  int           // transient retries per provider, default 3
	BackoffBase time.Duration // default 1s
	BackoffCap  time.Duration // default 10s
}

func (o *Options) fill() {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = 10 * time.Second
	}
}

// Service runs ensemble validations against the configured providers.
type Service struct {
	providers    []provider.FactChecker
	temperatures map[string]float64
	consensus    config.ConsensusPolicy
	tracker      *budget.Tracker
	opts         Options
	logger       *slog.Logger

	providerLatency    metric.Float64Histogram
	validationDuration metric.Float64Histogram
}

// New creates the consensus engine. The provider order fixes the spot-tier
// tiebreak, so pass providers in policy order.
func New(providers []provider.FactChecker, pol config.Policy, tracker *budget.Tracker, opts Options, logger *slog.Logger) *Service {
	opts.fill()

	temps := make(map[string]float64, len(pol.Providers))
	for _, p := range pol.Providers {
		temps[p.Name] = p.Temperature
	}

	meter := telemetry.Meter("gatehouse/factcheck")
	provLat, _ := meter.Float64Histogram("gatehouse.provider.latency",
		metric.WithDescription("Provider round-trip latency (ms)"),
		metric.WithUnit("ms"),
	)
	valDur, _ := meter.Float64Histogram("gatehouse.validation.duration",
		metric.WithDescription("Full ensemble validation duration (ms)"),
		metric.WithUnit("ms"),
	)

	return &Service{
		providers:          providers,
		temperatures:       temps,
		consensus:          pol.Consensus,
		tracker:            tracker,
		opts:               opts,
		logger:             logger,
		providerLatency:    provLat,
		validationDuration: valDur,
	}
}

// providerCall is the joined outcome of one provider's attempt.
type providerCall struct {
	name    string
	result  model.ValidationResult
	cost    float64
	latency time.Duration
	err     error
}

// ValidateEnsemble runs one fact-check pass at the given tier.
//
// The budget is read-checked before any provider is contacted; the pass is
// refused with budget.ErrExceeded when the daily cap is already met.
func (s *Service) ValidateEnsemble(ctx context.Context, prompt, draftInput, correlationID string, tier model.ValidationTier) (model.EnsembleResult, error) {
	if err := s.tracker.Reserve(); err != nil {
		return model.EnsembleResult{}, fmt.Errorf("factcheck: %w", err)
	}

	selected := s.selectProviders(tier)
	if len(selected) == 0 {
		return model.EnsembleResult{}, fmt.Errorf("factcheck: no providers for tier %q", tier)
	}

	start := time.Now()
	calls := make([]providerCall, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	for i, fc := range selected {
		i, fc := i, fc
		g.Go(func() error {
			calls[i] = s.callProvider(gctx, fc, prompt, draftInput, correlationID)
			return nil
		})
	}
	_ = g.Wait() // individual failures live in calls[i].err

	// A cancelled run must not report a partial ensemble.
	if err := ctx.Err(); err != nil {
		return model.EnsembleResult{}, fmt.Errorf("factcheck: %w", err)
	}

	var (
		results   []model.ValidationResult
		failures  = map[string]string{}
		totalCost float64
		totalLat  time.Duration
	)
	for _, c := range calls {
		totalCost += c.cost
		totalLat += c.latency
		if c.err != nil {
			failures[c.name] = c.err.Error()
			s.logger.Warn("factcheck: provider dropped", "provider", c.name, "correlation_id", correlationID, "error", c.err)
			continue
		}
		results = append(results, c.result)
	}
	s.tracker.Charge(totalCost)
	s.validationDuration.Record(ctx, float64(time.Since(start).Milliseconds()))

	if len(results) == 0 {
		return model.EnsembleResult{}, fmt.Errorf("%w: %d attempted", ErrAllProvidersFailed, len(selected))
	}

	ensemble := s.synthesize(results)
	ensemble.Failures = failures
	ensemble.TotalCost = totalCost
	ensemble.TotalLatency = totalLat
	ensemble.CorrelationID = correlationID
	ensemble.Synthesis.CorrelationID = correlationID

	s.logger.Info("factcheck: ensemble complete",
		"correlation_id", correlationID,
		"tier", tier,
		"providers_ok", len(results),
		"providers_failed", len(failures),
		"consensus_score", ensemble.ConsensusScore,
		"consensus_tier", ensemble.ConsensusTier,
		"cost_usd", totalCost,
	)
	return ensemble, nil
}

// selectProviders applies the tier rules: spot takes the single cheapest
// provider by input rate (policy order breaks ties), standard takes the two
// named in policy, full takes everything.
func (s *Service) selectProviders(tier model.ValidationTier) []provider.FactChecker {
	switch tier {
	case model.ValidationSpot:
		if len(s.providers) == 0 {
			return nil
		}
		cheapest := 0
		for i, p := range s.providers {
			in, _ := p.Rates()
			best, _ := s.providers[cheapest].Rates()
			if in < best {
				cheapest = i
			}
		}
		return []provider.FactChecker{s.providers[cheapest]}
	case model.ValidationStandard:
		wanted := map[string]bool{}
		for _, name := range s.consensus.StandardProviders {
			wanted[name] = true
		}
		var out []provider.FactChecker
		for _, p := range s.providers {
			if wanted[p.Name()] {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return s.providers
		}
		return out
	default:
		return s.providers
	}
}

// callProvider runs one provider with retry, parses the response, and
// derives its verdict.
func (s *Service) callProvider(ctx context.Context, fc provider.FactChecker, prompt, draftInput, correlationID string) providerCall {
	call := providerCall{name: fc.Name()}

	req := provider.Request{
		System:      systemPrompt,
		Prompt:      prompt + "\n\n---\n\n" + draftInput,
		Temperature: s.temperatures[fc.Name()],
	}

	resp, err := s.reviewWithRetry(ctx, fc, req)
	if err != nil {
		call.err = err
		return call
	}

	in, out := fc.Rates()
	call.cost = budget.Cost(resp.PromptTokens, resp.ResponseTokens, in, out)
	call.latency = resp.Latency
	s.providerLatency.Record(ctx, float64(resp.Latency.Milliseconds()))

	result, err := s.parseResponse(resp, correlationID)
	if err != nil {
		call.err = err
		return call
	}
	call.result = result
	return call
}

// reviewWithRetry retries transient failures with exponential backoff.
// Non-transient failures (auth, malformed request, parse) fail immediately.
func (s *Service) reviewWithRetry(ctx context.Context, fc provider.FactChecker, req provider.Request) (model.ProviderResponse, error) {
	delay := s.opts.BackoffBase
	var lastErr error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return model.ProviderResponse{}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > s.opts.BackoffCap {
				delay = s.opts.BackoffCap
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		resp, err := fc.Review(callCtx, req)
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !provider.IsTransient(err) {
			return model.ProviderResponse{}, err
		}
		s.logger.Debug("factcheck: transient provider failure, retrying",
			"provider", fc.Name(), "attempt", attempt+1, "error", err)
	}
	return model.ProviderResponse{}, fmt.Errorf("factcheck: %s exhausted retries: %w", fc.Name(), lastErr)
}

// reviewPayload is the JSON schema providers are instructed to emit.
type reviewPayload struct {
	ApprovedRegulations []string `json:"approved_regulations"`
	DisputedRegulations []string `json:"disputed_regulations"`
	MissingRegulations  []string `json:"missing_regulations"`
	FactualErrors       []string `json:"factual_errors"`
	Warnings            []string `json:"warnings"`
	CostEstimateValid   bool     `json:"cost_estimate_valid"`
	Confidence          float64  `json:"confidence"`
}

func (s *Service) parseResponse(resp model.ProviderResponse, correlationID string) (model.ValidationResult, error) {
	var payload reviewPayload
	if err := extract.Unmarshal(resp.RawText, &payload); err != nil {
		return model.ValidationResult{}, fmt.Errorf("factcheck: %s response: %w", resp.Provider, err)
	}

	conf := clamp(payload.Confidence, 0, 100)
	return model.ValidationResult{
		Provider:            resp.Provider,
		ApprovedRegulations: payload.ApprovedRegulations,
		DisputedRegulations: payload.DisputedRegulations,
		MissingRegulations:  payload.MissingRegulations,
		FactualErrors:       payload.FactualErrors,
		Warnings:            payload.Warnings,
		CostEstimateValid:   payload.CostEstimateValid,
		Confidence:          conf,
		Action:              model.ActionForConfidence(conf, s.consensus.PublishThreshold, s.consensus.ReviewThreshold),
		CorrelationID:       correlationID,
	}, nil
}

// synthesize computes the consensus score and merged result.
func (s *Service) synthesize(results []model.ValidationResult) model.EnsembleResult {
	mean, stddev := meanStdDev(confidences(results))

	ensemble := model.EnsembleResult{
		MeanConfidence:   mean,
		StdDevConfidence: stddev,
		ProviderResults:  results,
	}

	if len(results) == 1 {
		// A single successful provider is its own consensus.
		ensemble.ConsensusScore = results[0].Confidence
	} else {
		ensemble.ConsensusScore = consensusScore(results)
	}
	ensemble.ConsensusTier = model.TierForScore(ensemble.ConsensusScore)

	ensemble.Synthesis = model.ValidationResult{
		Provider:            "ensemble",
		ApprovedRegulations: unionOf(results, func(r model.ValidationResult) []string { return r.ApprovedRegulations }),
		DisputedRegulations: unionOf(results, func(r model.ValidationResult) []string { return r.DisputedRegulations }),
		MissingRegulations:  unionOf(results, func(r model.ValidationResult) []string { return r.MissingRegulations }),
		FactualErrors:       unionOf(results, func(r model.ValidationResult) []string { return r.FactualErrors }),
		Warnings:            unionOf(results, func(r model.ValidationResult) []string { return r.Warnings }),
		CostEstimateValid:   majorityCostValid(results),
		Confidence:          mean,
		Action:              model.ActionForConfidence(mean, s.consensus.PublishThreshold, s.consensus.ReviewThreshold),
	}
	return ensemble
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// unionOf merges a string field across providers, deduplicated and sorted so
// the synthesis is deterministic regardless of join order.
func unionOf(results []model.ValidationResult, field func(model.ValidationResult) []string) []string {
	seen := map[string]bool{}
	for _, r := range results {
		for _, v := range field(r) {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

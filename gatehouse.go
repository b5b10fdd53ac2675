// Package gatehouse is the public API for embedding the editorial validation
// pipeline.
//
// Consumers import this package to run drafts through the gate sequence
// without shelling out to the CLI:
//
//	app, err := gatehouse.New(
//	    gatehouse.WithLogger(logger),
//	    gatehouse.WithDatabasePath("gatehouse.db"),
//	)
//	if err != nil { ... }
//	defer app.Close()
//	out, err := app.Process(ctx, draft, evidence)
//
// The import graph enforces a strict no-cycle rule: gatehouse (root) imports
// internal/*, but internal/* never imports gatehouse (root). Public types
// (Draft, Outcome, etc.) are standalone structs with no internal imports;
// conversion helpers live here because this is the only file that sees both
// sides of the boundary.
package gatehouse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/halcyonpress/gatehouse/internal/budget"
	"github.com/halcyonpress/gatehouse/internal/config"
	"github.com/halcyonpress/gatehouse/internal/model"
	"github.com/halcyonpress/gatehouse/internal/provider"
	"github.com/halcyonpress/gatehouse/internal/service/council"
	"github.com/halcyonpress/gatehouse/internal/service/factcheck"
	"github.com/halcyonpress/gatehouse/internal/service/pipeline"
	"github.com/halcyonpress/gatehouse/internal/service/quality"
	"github.com/halcyonpress/gatehouse/internal/service/router"
	"github.com/halcyonpress/gatehouse/internal/storage"
	"github.com/halcyonpress/gatehouse/internal/telemetry"
	"github.com/halcyonpress/gatehouse/migrations"
)

// App is the embedded pipeline lifecycle. Construct with New(), run drafts
// with Process(), release resources with Close().
type App struct {
	cfg          config.Config
	db           *storage.DB
	machine      *pipeline.Machine
	tracker      *budget.Tracker
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
}

// New initialises the pipeline: loads configuration and policy, opens the
// database, runs migrations, and wires every stage. It starts no goroutines.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{dailyBudget: -1}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.databasePath != "" {
		cfg.DatabasePath = o.databasePath
	}
	if o.policyPath != "" {
		cfg.PolicyPath = o.policyPath
	}
	if o.dailyBudget >= 0 {
		cfg.DailyBudgetUSD = o.dailyBudget
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	pol, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return nil, err
	}

	logger.Info("gatehouse starting", "version", version, "database", cfg.DatabasePath)

	ctx := context.Background()
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	db, err := storage.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("storage: %w", err)
	}
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("migrations: %w", err)
	}

	checkers, err := provider.Build(pol.Providers, provider.Keys{
		OpenAI:    cfg.OpenAIAPIKey,
		Anthropic: cfg.AnthropicAPIKey,
		Gemini:    cfg.GeminiAPIKey,
	}, cfg.ProviderTimeout, logger)
	if err != nil && len(o.checkers) == 0 {
		db.Close()
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("providers: %w", err)
	}
	for _, fc := range o.checkers {
		checkers = append(checkers, checkerAdapter{fc})
	}

	tracker := budget.NewTracker(cfg.DailyBudgetUSD)
	validator := factcheck.New(checkers, pol, tracker, factcheck.Options{
		Timeout:     cfg.ProviderTimeout,
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: cfg.BackoffBase,
		BackoffCap:  cfg.BackoffCap,
	}, logger)

	councilSvc := council.New(cheapestChecker(checkers), pol, logger)
	machine := pipeline.New(db, quality.New(pol), validator, councilSvc,
		router.New(pol, logger), pipeline.Options{StrictQuality: o.strictQuality}, logger)

	return &App{
		cfg:          cfg,
		db:           db,
		machine:      machine,
		tracker:      tracker,
		otelShutdown: otelShutdown,
		logger:       logger,
	}, nil
}

// Process runs one draft through the full gate sequence.
func (a *App) Process(ctx context.Context, draft Draft, evidence []EvidenceItem) (Outcome, error) {
	out, err := a.machine.Process(ctx, toModelDraft(draft), toModelEvidence(evidence))
	if err != nil {
		return Outcome{}, err
	}
	return toPublicOutcome(out), nil
}

// Spent reports the running daily fact-check spend in USD.
func (a *App) Spent() float64 {
	return a.tracker.Spent()
}

// Close releases the database handle and flushes telemetry.
func (a *App) Close() error {
	err := a.db.Close()
	if a.otelShutdown != nil {
		if serr := a.otelShutdown(context.Background()); err == nil {
			err = serr
		}
	}
	return err
}

// checkerAdapter bridges a public FactChecker into the internal provider
// interface.
type checkerAdapter struct {
	fc FactChecker
}

func (c checkerAdapter) Name() string { return c.fc.Name() }

func (c checkerAdapter) Rates() (float64, float64) { return c.fc.Rates() }

func (c checkerAdapter) Review(ctx context.Context, req provider.Request) (model.ProviderResponse, error) {
	resp, err := c.fc.Review(ctx, ReviewRequest{
		System:      req.System,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
	})
	if err != nil {
		return model.ProviderResponse{}, err
	}
	return model.ProviderResponse{
		Provider:       c.fc.Name(),
		RawText:        resp.Text,
		PromptTokens:   resp.PromptTokens,
		ResponseTokens: resp.ResponseTokens,
		Latency:        resp.Latency,
	}, nil
}

func cheapestChecker(checkers []provider.FactChecker) provider.FactChecker {
	best := checkers[0]
	bestIn, _ := best.Rates()
	for _, c := range checkers[1:] {
		if in, _ := c.Rates(); in < bestIn {
			best, bestIn = c, in
		}
	}
	return best
}

func toModelDraft(d Draft) model.Draft {
	sources := make([]model.Source, len(d.Sources))
	for i, s := range d.Sources {
		sources[i] = model.Source{
			EvidenceID:  s.EvidenceID,
			Title:       s.Title,
			URL:         s.URL,
			Domain:      s.Domain,
			Credibility: s.Credibility,
			Snippet:     s.Snippet,
			RetrievedAt: s.RetrievedAt,
		}
	}
	return model.Draft{
		ID:          d.ID,
		Title:       d.Title,
		Body:        d.Body,
		Category:    d.Category,
		ContentType: model.ContentType(d.ContentType),
		Urgency:     model.Urgency(d.Urgency),
		Sources:     sources,
	}
}

func toModelEvidence(items []EvidenceItem) []model.EvidenceItem {
	out := make([]model.EvidenceItem, len(items))
	for i, e := range items {
		out[i] = model.EvidenceItem{
			ID:          e.ID,
			Title:       e.Title,
			URL:         e.URL,
			Domain:      e.Domain,
			Credibility: e.Credibility,
			Snippet:     e.Snippet,
			RetrievedAt: e.RetrievedAt,
		}
	}
	return out
}

func toPublicOutcome(out pipeline.Outcome) Outcome {
	pub := Outcome{
		DraftID:       out.DraftID,
		CorrelationID: out.CorrelationID,
		Profile:       out.Profile,
		FinalState:    string(out.FinalState),
		Issues:        out.Issues,
	}
	if out.Quality != nil {
		pub.QualityScore = out.Quality.Score
	}
	if out.Ensemble != nil {
		pub.ConsensusScore = out.Ensemble.ConsensusScore
		pub.ConsensusTier = string(out.Ensemble.ConsensusTier)
	}
	if out.Verdict != nil {
		pub.Decision = string(out.Verdict.Decision)
	}
	return pub
}

// Command gatehouse is the operator tool for the editorial pipeline. It
// validates drafts through the full gate sequence and inspects the audit
// trail of past runs.
//
// Usage:
//
//	gatehouse validate -file draft.json [-format text|json|markdown] [-profile name] [-min-score n] [-strict]
//	gatehouse validate -batch drafts.json
//	gatehouse audit -draft <uuid>
//
// Exit codes: 0 when validation completed (regardless of verdict), 1 on
// malformed input, 2 on total provider failure.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

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

// version is set at build time via -ldflags.
var version = "dev"

const (
	exitOK              = 0
	exitMalformedInput  = 1
	exitProvidersFailed = 2
)

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("GATEHOUSE_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	code, err := run(ctx, logger, os.Args[1:])
	if err != nil {
		slog.Error("fatal error", "error", err)
		if code == exitOK {
			code = exitMalformedInput
		}
	}
	return code
}

func run(ctx context.Context, logger *slog.Logger, args []string) (int, error) {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return exitMalformedInput, fmt.Errorf("load config: %w", err)
	}

	cmd := "validate"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "validate":
		return runValidate(ctx, cfg, logger, args)
	case "audit":
		return runAudit(ctx, cfg, logger, args)
	case "help", "-h", "--help":
		fmt.Fprintln(os.Stderr, "usage: gatehouse [validate|audit] [flags]")
		return exitOK, nil
	default:
		return exitMalformedInput, fmt.Errorf("unknown command %q", cmd)
	}
}

func buildMachine(ctx context.Context, cfg config.Config, logger *slog.Logger, dbPath, profileOverride string, strict bool, minScore float64) (*pipeline.Machine, func(), error) {
	pol, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return nil, nil, err
	}
	if minScore > 0 {
		pol.Consensus.PublishThreshold = minScore
	}

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: %w", err)
	}

	if dbPath == "" {
		dbPath = cfg.DatabasePath
	}
	db, err := storage.Open(ctx, dbPath, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, nil, fmt.Errorf("storage: %w", err)
	}
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}

	providers, err := provider.Build(pol.Providers, provider.Keys{
		OpenAI:    cfg.OpenAIAPIKey,
		Anthropic: cfg.AnthropicAPIKey,
		Gemini:    cfg.GeminiAPIKey,
	}, cfg.ProviderTimeout, logger)
	if err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, nil, fmt.Errorf("providers: %w", err)
	}

	tracker := budget.NewTracker(cfg.DailyBudgetUSD)
	validator := factcheck.New(providers, pol, tracker, factcheck.Options{
		Timeout:     cfg.ProviderTimeout,
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: cfg.BackoffBase,
		BackoffCap:  cfg.BackoffCap,
	}, logger)

	councilSvc := council.New(cheapest(providers), pol, logger)

	var selector pipeline.ProfileSelector = router.New(pol, logger)
	if profileOverride != "" {
		profile, err := pol.Profile(profileOverride)
		if err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, nil, fmt.Errorf("profile override: %w", err)
		}
		selector = fixedProfile{profile}
	}

	machine := pipeline.New(db, quality.New(pol), validator, councilSvc, selector,
		pipeline.Options{StrictQuality: strict}, logger)

	cleanup := func() {
		db.Close()
		_ = otelShutdown(context.Background())
	}
	return machine, cleanup, nil
}

// cheapest picks the lowest input-rate provider as the council's completion
// backend. Council prompts are short and frequent; price beats pedigree.
func cheapest(providers []provider.FactChecker) provider.FactChecker {
	best := providers[0]
	bestIn, _ := best.Rates()
	for _, p := range providers[1:] {
		if in, _ := p.Rates(); in < bestIn {
			best, bestIn = p, in
		}
	}
	return best
}

type fixedProfile struct{ profile model.Profile }

func (f fixedProfile) SelectProfile(model.Draft) model.Profile { return f.profile }

package gatehouse

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	logger        *slog.Logger
	version       string
	databasePath  string
	policyPath    string
	dailyBudget   float64
	strictQuality bool
	checkers      []FactChecker
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs and telemetry.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithDatabasePath overrides the SQLite path from config (GATEHOUSE_DB env var).
func WithDatabasePath(path string) Option {
	return func(o *resolvedOptions) { o.databasePath = path }
}

// WithPolicyPath overrides the policy file path from config (GATEHOUSE_POLICY
// env var). Empty means the compiled-in defaults.
func WithPolicyPath(path string) Option {
	return func(o *resolvedOptions) { o.policyPath = path }
}

// WithDailyBudget overrides the daily fact-check spend cap in USD
// (GATEHOUSE_DAILY_BUDGET env var). Zero disables the cap.
func WithDailyBudget(usd float64) Option {
	return func(o *resolvedOptions) { o.dailyBudget = usd }
}

// WithStrictQuality makes quality-gate failures hard stops instead of
// recorded warnings.
func WithStrictQuality(strict bool) Option {
	return func(o *resolvedOptions) { o.strictQuality = strict }
}

// WithFactChecker registers a custom fact-check backend alongside the
// built-in providers. Multiple backends may be registered; all participate
// in full-tier ensemble validation.
func WithFactChecker(fc FactChecker) Option {
	return func(o *resolvedOptions) { o.checkers = append(o.checkers, fc) }
}

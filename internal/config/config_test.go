package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonpress/gatehouse/internal/config"
	"github.com/halcyonpress/gatehouse/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 25.0, cfg.DailyBudgetUSD)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "gatehouse.db", cfg.DatabasePath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GATEHOUSE_DAILY_BUDGET", "5.5")
	t.Setenv("GATEHOUSE_PROVIDER_TIMEOUT", "10s")
	t.Setenv("GATEHOUSE_LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 5.5, cfg.DailyBudgetUSD)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestDefaultPolicy_ProfileResolution(t *testing.T) {
	p := config.DefaultPolicy()

	fast, err := p.Profile("fast_track")
	require.NoError(t, err)
	assert.True(t, fast.FastTrack)
	assert.Equal(t, model.ValidationSpot, fast.ConsensusTier)

	news, err := p.Profile("standard_news")
	require.NoError(t, err)
	assert.Equal(t, 70.0, news.MinSkeptic)
	assert.Equal(t, 30*time.Minute, news.MinDeliberation)

	// Unrecognized names fall back to standard news.
	fallback, err := p.Profile("listicle")
	require.NoError(t, err)
	assert.Equal(t, "standard_news", fallback.Name)

	research, err := p.Profile("research")
	require.NoError(t, err)
	assert.True(t, research.RequireUnanimous)
	assert.Contains(t, research.GateChecks, "expert_citation")
}

func TestLoadPolicy_FileOverridesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	body := `
quality:
  news:
    min_words: 100
    min_sections: 1
    min_sources: 1
consensus:
  publish_threshold: 90
  review_threshold: 50
  standard_providers: [gemini, openai]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	p, err := config.LoadPolicy(path)
	require.NoError(t, err)

	assert.Equal(t, 100, p.Quality["news"].MinWords)
	assert.Equal(t, 90.0, p.Consensus.PublishThreshold)
	assert.Equal(t, []string{"gemini", "openai"}, p.Consensus.StandardProviders)

	// Untouched sections keep defaults.
	assert.NotEmpty(t, p.RegulatoryTerms)
	assert.Len(t, p.Providers, 3)
	assert.Contains(t, p.TrustTiers, "tier_1")
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	_, err := config.LoadPolicy("/does/not/exist.yaml")
	assert.Error(t, err)
}

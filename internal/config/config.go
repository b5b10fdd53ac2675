// Package config loads application configuration from environment variables
// and the YAML policy file.
//
// The split is deliberate: secrets and operational limits come from the
// environment; everything editorial (thresholds, profiles, trust tiers,
// provider pricing) is data in the policy file so it can differ per
// environment without a rebuild.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds environment-driven settings.
type Config struct {
	// Provider API keys, one env var per provider.
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string

	// Budget and provider call behavior.
	DailyBudgetUSD  float64
	ProviderTimeout time.Duration
	MaxRetries      int
	BackoffBase     time.Duration
	BackoffCap      time.Duration

	// Storage.
	DatabasePath string

	// Policy file path; empty means compiled-in defaults.
	PolicyPath string

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string
	OTELInsecure bool

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		OpenAIAPIKey:    envStr("OPENAI_API_KEY", ""),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:    envStr("GEMINI_API_KEY", ""),
		DailyBudgetUSD:  envFloat("GATEHOUSE_DAILY_BUDGET", 25.0),
		ProviderTimeout: envDuration("GATEHOUSE_PROVIDER_TIMEOUT", 30*time.Second),
		MaxRetries:      envInt("GATEHOUSE_MAX_RETRIES", 3),
		BackoffBase:     envDuration("GATEHOUSE_BACKOFF_BASE", 1*time.Second),
		BackoffCap:      envDuration("GATEHOUSE_BACKOFF_CAP", 10*time.Second),
		DatabasePath:    envStr("GATEHOUSE_DB", "gatehouse.db"),
		PolicyPath:      envStr("GATEHOUSE_POLICY", ""),
		OTELEndpoint:    envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:     envStr("OTEL_SERVICE_NAME", "gatehouse"),
		OTELInsecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		LogLevel:        envStr("GATEHOUSE_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and sane.
func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("config: GATEHOUSE_DB is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: GATEHOUSE_MAX_RETRIES must not be negative")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("config: GATEHOUSE_PROVIDER_TIMEOUT must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

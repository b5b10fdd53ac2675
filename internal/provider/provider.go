// Package provider implements the fact-check completion backends.
//
// Each backend satisfies the closed FactChecker interface and is selected by
// name through a static registry; no runtime reflection. Clients return raw
// text plus token counts — parsing into structured verdicts is the consensus
// engine's job.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/halcyonpress/gatehouse/internal/config"
	"github.com/halcyonpress/gatehouse/internal/model"
)

// Request is one adversarial-review call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
}

// FactChecker is one completion backend used for adversarial review.
type FactChecker interface {
	Name() string
	// Review sends the adversarial prompt and returns the raw response.
	Review(ctx context.Context, req Request) (model.ProviderResponse, error)
	// Rates returns the USD cost per 1k prompt and response tokens.
	Rates() (input, output float64)
}

// StatusError is a non-2xx HTTP response from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider %s: http %d: %s", e.Provider, e.Code, e.Body)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code == 429 || e.Code >= 500
}

// IsTransient reports whether err is a retryable network or provider failure.
// Auth failures and malformed requests are permanent; timeouts, refused
// connections, rate limits, and server errors are transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

// Keys carries the per-provider API keys from the environment.
type Keys struct {
	OpenAI    string
	Anthropic string
	Gemini    string
}

// New constructs one backend by name. Unknown names are an error so a policy
// typo fails at startup, not mid-pipeline.
func New(pol config.ProviderPolicy, keys Keys, timeout time.Duration) (FactChecker, error) {
	switch pol.Name {
	case "openai":
		if keys.OpenAI == "" {
			return nil, fmt.Errorf("provider: OPENAI_API_KEY not set")
		}
		return newOpenAI(pol, keys.OpenAI, timeout), nil
	case "anthropic":
		if keys.Anthropic == "" {
			return nil, fmt.Errorf("provider: ANTHROPIC_API_KEY not set")
		}
		return newAnthropic(pol, keys.Anthropic, timeout), nil
	case "gemini":
		if keys.Gemini == "" {
			return nil, fmt.Errorf("provider: GEMINI_API_KEY not set")
		}
		return newGemini(pol, keys.Gemini, timeout), nil
	default:
		return nil, fmt.Errorf("provider: unknown backend %q", pol.Name)
	}
}

// Build constructs every configured backend whose key is present. Backends
// with missing keys are skipped with a warning; an empty result is an error.
func Build(policies []config.ProviderPolicy, keys Keys, timeout time.Duration, logger *slog.Logger) ([]FactChecker, error) {
	var out []FactChecker
	for _, pol := range policies {
		fc, err := New(pol, keys, timeout)
		if err != nil {
			logger.Warn("provider: skipping backend", "name", pol.Name, "error", err)
			continue
		}
		out = append(out, fc)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("provider: no backends configured (check API key env vars)")
	}
	return out, nil
}

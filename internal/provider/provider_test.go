package provider_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonpress/gatehouse/internal/config"
	"github.com/halcyonpress/gatehouse/internal/provider"
)

func openAIPolicy(endpoint string) config.ProviderPolicy {
	return config.ProviderPolicy{
		Name: "openai", Model: "gpt-4o", Endpoint: endpoint,
		InputRate: 0.0025, OutputRate: 0.01, Temperature: 0.2,
	}
}

func TestOpenAI_Review(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req["model"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"confidence": 88}`}},
			},
			"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 40},
		})
	}))
	defer srv.Close()

	fc, err := provider.New(openAIPolicy(srv.URL), provider.Keys{OpenAI: "test-key"}, 5*time.Second)
	require.NoError(t, err)

	resp, err := fc.Review(context.Background(), provider.Request{System: "sys", Prompt: "check this"})
	require.NoError(t, err)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, `{"confidence": 88}`, resp.RawText)
	assert.Equal(t, 120, resp.PromptTokens)
	assert.Equal(t, 40, resp.ResponseTokens)
}

func TestOpenAI_StatusErrors(t *testing.T) {
	tests := []struct {
		code      int
		transient bool
	}{
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.code)
		}))

		fc, err := provider.New(openAIPolicy(srv.URL), provider.Keys{OpenAI: "k"}, 5*time.Second)
		require.NoError(t, err)

		_, err = fc.Review(context.Background(), provider.Request{Prompt: "x"})
		require.Error(t, err)
		assert.Equal(t, tt.transient, provider.IsTransient(err), "status %d", tt.code)
		srv.Close()
	}
}

func TestIsTransient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	fc, err := provider.New(openAIPolicy(srv.URL), provider.Keys{OpenAI: "k"}, 20*time.Millisecond)
	require.NoError(t, err)

	_, err = fc.Review(context.Background(), provider.Request{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, provider.IsTransient(err))
}

func TestNew_UnknownAndMissingKey(t *testing.T) {
	_, err := provider.New(config.ProviderPolicy{Name: "mystery"}, provider.Keys{}, time.Second)
	assert.Error(t, err)

	_, err = provider.New(config.ProviderPolicy{Name: "anthropic"}, provider.Keys{}, time.Second)
	assert.Error(t, err, "missing key must fail at startup")
}

func TestBuild_SkipsMissingKeys(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pols := config.DefaultPolicy().Providers

	backends, err := provider.Build(pols, provider.Keys{Gemini: "k"}, time.Second, logger)
	require.NoError(t, err)
	require.Len(t, backends, 1)
	assert.Equal(t, "gemini", backends[0].Name())

	_, err = provider.Build(pols, provider.Keys{}, time.Second, logger)
	assert.Error(t, err, "zero backends is a startup error")
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/halcyonpress/gatehouse/internal/config"
	"github.com/halcyonpress/gatehouse/internal/model"
)

// anthropic talks to the Anthropic messages API.
type anthropic struct {
	endpoint   string
	modelName  string
	apiKey     string
	inputRate  float64
	outputRate float64
	httpClient *http.Client
}

func newAnthropic(pol config.ProviderPolicy, apiKey string, timeout time.Duration) *anthropic {
	return &anthropic{
		endpoint:   pol.Endpoint,
		modelName:  pol.Model,
		apiKey:     apiKey,
		inputRate:  pol.InputRate,
		outputRate: pol.OutputRate,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *anthropic) Name() string              { return "anthropic" }
func (c *anthropic) Rates() (float64, float64) { return c.inputRate, c.outputRate }

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Review posts the adversarial prompt to the messages endpoint.
func (c *anthropic) Review(ctx context.Context, req Request) (model.ProviderResponse, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:       c.modelName,
		MaxTokens:   2048,
		System:      req.System,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return model.ProviderResponse{}, fmt.Errorf("provider anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.ProviderResponse{}, fmt.Errorf("provider anthropic: new request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.ProviderResponse{}, fmt.Errorf("provider anthropic: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return model.ProviderResponse{}, &StatusError{Provider: "anthropic", Code: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return model.ProviderResponse{}, fmt.Errorf("provider anthropic: decode response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return model.ProviderResponse{}, fmt.Errorf("provider anthropic: empty content")
	}

	return model.ProviderResponse{
		Provider:       "anthropic",
		RawText:        parsed.Content[0].Text,
		PromptTokens:   parsed.Usage.InputTokens,
		ResponseTokens: parsed.Usage.OutputTokens,
		Latency:        time.Since(start),
	}, nil
}

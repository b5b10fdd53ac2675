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

// gemini talks to the Google generative language API.
type gemini struct {
	endpoint   string // base URL up to /models
	modelName  string
	apiKey     string
	inputRate  float64
	outputRate float64
	httpClient *http.Client
}

func newGemini(pol config.ProviderPolicy, apiKey string, timeout time.Duration) *gemini {
	return &gemini{
		endpoint:   strings.TrimSuffix(pol.Endpoint, "/"),
		modelName:  pol.Model,
		apiKey:     apiKey,
		inputRate:  pol.InputRate,
		outputRate: pol.OutputRate,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *gemini) Name() string              { return "gemini" }
func (c *gemini) Rates() (float64, float64) { return c.inputRate, c.outputRate }

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiContent struct {
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func textContent(s string) *geminiContent {
	c := &geminiContent{}
	c.Parts = append(c.Parts, struct {
		Text string `json:"text"`
	}{Text: s})
	return c
}

// Review posts the adversarial prompt via generateContent.
func (c *gemini) Review(ctx context.Context, req Request) (model.ProviderResponse, error) {
	payload := geminiRequest{
		SystemInstruction: textContent(req.System),
		Contents:          []geminiContent{*textContent(req.Prompt)},
	}
	payload.GenerationConfig.Temperature = req.Temperature

	body, err := json.Marshal(payload)
	if err != nil {
		return model.ProviderResponse{}, fmt.Errorf("provider gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.endpoint, c.modelName, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return model.ProviderResponse{}, fmt.Errorf("provider gemini: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.ProviderResponse{}, fmt.Errorf("provider gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return model.ProviderResponse{}, &StatusError{Provider: "gemini", Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return model.ProviderResponse{}, fmt.Errorf("provider gemini: decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return model.ProviderResponse{}, fmt.Errorf("provider gemini: empty candidates")
	}

	return model.ProviderResponse{
		Provider:       "gemini",
		RawText:        parsed.Candidates[0].Content.Parts[0].Text,
		PromptTokens:   parsed.UsageMetadata.PromptTokenCount,
		ResponseTokens: parsed.UsageMetadata.CandidatesTokenCount,
		Latency:        time.Since(start),
	}, nil
}

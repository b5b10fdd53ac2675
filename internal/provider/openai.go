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

// openAI talks to the OpenAI chat-completions API.
type openAI struct {
	endpoint   string
	modelName  string
	apiKey     string
	inputRate  float64
	outputRate float64
	httpClient *http.Client
}

func newOpenAI(pol config.ProviderPolicy, apiKey string, timeout time.Duration) *openAI {
	return &openAI{
		endpoint:   pol.Endpoint,
		modelName:  pol.Model,
		apiKey:     apiKey,
		inputRate:  pol.InputRate,
		outputRate: pol.OutputRate,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *openAI) Name() string              { return "openai" }
func (c *openAI) Rates() (float64, float64) { return c.inputRate, c.outputRate }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Review posts the adversarial prompt as a chat completion.
func (c *openAI) Review(ctx context.Context, req Request) (model.ProviderResponse, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.modelName,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
	})
	if err != nil {
		return model.ProviderResponse{}, fmt.Errorf("provider openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.ProviderResponse{}, fmt.Errorf("provider openai: new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.ProviderResponse{}, fmt.Errorf("provider openai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return model.ProviderResponse{}, &StatusError{Provider: "openai", Code: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return model.ProviderResponse{}, fmt.Errorf("provider openai: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return model.ProviderResponse{}, fmt.Errorf("provider openai: empty choices")
	}

	return model.ProviderResponse{
		Provider:       "openai",
		RawText:        parsed.Choices[0].Message.Content,
		PromptTokens:   parsed.Usage.PromptTokens,
		ResponseTokens: parsed.Usage.CompletionTokens,
		Latency:        time.Since(start),
	}, nil
}

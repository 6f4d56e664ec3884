package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAIProvider talks to an OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
	initErr     error
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	p := &OpenAIProvider{
		baseURL:     baseURL,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		client:      &http.Client{Timeout: timeout},
	}
	if p.apiKey == "" {
		p.initErr = errors.New("openai api key is not set")
	}
	return p
}

func (p *OpenAIProvider) Name() string     { return "openai" }
func (p *OpenAIProvider) Model() string    { return p.model }
func (p *OpenAIProvider) Available() bool  { return p.initErr == nil }
func (p *OpenAIProvider) InitError() error { return p.initErr }

func (p *OpenAIProvider) Complete(ctx context.Context, prompt Prompt) Result {
	result := Result{Provider: p.Name(), Model: p.model}
	if p.initErr != nil {
		result.Status = StatusUnavailable
		result.Err = p.initErr
		return result
	}

	body, err := json.Marshal(map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "system", "content": prompt.System},
			{"role": "user", "content": "Generate a SQL query for: " + prompt.Question},
		},
		"temperature": p.temperature,
		"max_tokens":  p.maxTokens,
	})
	if err != nil {
		return result.failed(StatusError, fmt.Errorf("marshal chat payload: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return result.failed(StatusError, fmt.Errorf("build chat request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return result.failed(StatusUnavailable, fmt.Errorf("request chat completion: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return result.failed(StatusUnavailable, fmt.Errorf("read chat response body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return result.failed(StatusError, fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, truncate(rawRespBody, 512)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return result.failed(StatusError, fmt.Errorf("decode chat completion response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return result.failed(StatusError, fmt.Errorf("empty chat completion choices"))
	}

	result.Status = StatusOK
	result.Text = parsed.Choices[0].Message.Content
	return result
}

func (r Result) failed(status Status, err error) Result {
	r.Status = status
	r.Err = err
	r.Text = ""
	return r
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}

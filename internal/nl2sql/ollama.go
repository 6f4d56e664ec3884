package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OllamaConfig struct {
	BaseURL      string
	Model        string
	Temperature  float64
	Timeout      time.Duration
	ProbeTimeout time.Duration
}

// OllamaProvider calls a local Ollama generate endpoint. Reachability is
// decided once by the probe in NewOllamaProvider and never rechecked.
type OllamaProvider struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
	initErr     error
}

func NewOllamaProvider(ctx context.Context, cfg OllamaConfig) *OllamaProvider {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "llama3"
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}
	p := &OllamaProvider{
		baseURL:     baseURL,
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}
	p.initErr = p.probe(ctx, probeTimeout)
	return p
}

func (p *OllamaProvider) probe(ctx context.Context, timeout time.Duration) error {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe ollama: status=%d", resp.StatusCode)
	}
	return nil
}

func (p *OllamaProvider) Name() string     { return "ollama" }
func (p *OllamaProvider) Model() string    { return p.model }
func (p *OllamaProvider) Available() bool  { return p.initErr == nil }
func (p *OllamaProvider) InitError() error { return p.initErr }

func (p *OllamaProvider) Complete(ctx context.Context, prompt Prompt) Result {
	result := Result{Provider: p.Name(), Model: p.model}
	if p.initErr != nil {
		result.Status = StatusUnavailable
		result.Err = p.initErr
		return result
	}

	body, err := json.Marshal(map[string]any{
		"model":  p.model,
		"prompt": prompt.Combined(),
		"stream": false,
		"options": map[string]any{
			"temperature": p.temperature,
		},
	})
	if err != nil {
		return result.failed(StatusError, fmt.Errorf("marshal generate payload: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return result.failed(StatusError, fmt.Errorf("build generate request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return result.failed(StatusUnavailable, fmt.Errorf("request generate: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return result.failed(StatusUnavailable, fmt.Errorf("read generate response body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return result.failed(StatusError, fmt.Errorf("generate failed status=%d body=%s", resp.StatusCode, truncate(rawRespBody, 512)))
	}

	var parsed struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return result.failed(StatusError, fmt.Errorf("decode generate response: %w", err))
	}

	result.Status = StatusOK
	result.Text = parsed.Response
	return result
}

// Package nl2sql turns natural-language questions into SQL text by calling a
// completion provider.
package nl2sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type Status string

const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
	StatusError       Status = "error"
)

// Prompt is the input to a provider. System carries the schema context.
type Prompt struct {
	System   string
	Question string
}

// Combined renders the single-string prompt used by generate-style APIs.
func (p Prompt) Combined() string {
	return fmt.Sprintf("%s\n\nUser Query: %s\n\nSQL Query:", p.System, p.Question)
}

// Result is the outcome of one completion call. Text is the raw provider
// output and is only meaningful when Status is StatusOK.
type Result struct {
	Status   Status
	Text     string
	Provider string
	Model    string
	Err      error
}

func (r Result) OK() bool {
	return r.Status == StatusOK
}

type Provider interface {
	Name() string
	Model() string
	Available() bool
	Complete(ctx context.Context, prompt Prompt) Result
}

type Settings struct {
	Provider string
	OpenAI   OpenAIConfig
	Ollama   OllamaConfig
}

// New builds the configured provider and logs its initial status. Missing
// credentials or an unreachable local server yield a provider that reports
// StatusUnavailable, never an error.
func New(ctx context.Context, settings Settings, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var provider Provider
	switch strings.ToLower(strings.TrimSpace(settings.Provider)) {
	case "openai":
		provider = NewOpenAIProvider(settings.OpenAI)
	case "ollama":
		provider = NewOllamaProvider(ctx, settings.Ollama)
	case "none", "":
		provider = Disabled{}
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", settings.Provider)
	}

	if provider.Available() {
		logger.Info("llm provider connected", "provider", provider.Name(), "model", provider.Model())
	} else {
		attrs := []any{"provider", provider.Name(), "model", provider.Model()}
		if reporter, ok := provider.(interface{ InitError() error }); ok && reporter.InitError() != nil {
			logger.Warn("llm provider initialization failed", append(attrs, "error", reporter.InitError())...)
		} else {
			logger.Warn("llm provider not available, demo fallback active", attrs...)
		}
	}
	return provider, nil
}

// Disabled never produces completions.
type Disabled struct{}

func (Disabled) Name() string    { return "none" }
func (Disabled) Model() string   { return "" }
func (Disabled) Available() bool { return false }

func (Disabled) Complete(context.Context, Prompt) Result {
	return Result{Status: StatusUnavailable, Provider: "none", Err: fmt.Errorf("no llm provider configured")}
}

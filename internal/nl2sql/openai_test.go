package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIProviderComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("Authorization = %q", got)
		}
		var payload struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.Model != "gpt-4o-mini" || payload.Temperature != 0.1 || payload.MaxTokens != 500 {
			t.Fatalf("payload = %#v", payload)
		}
		if len(payload.Messages) != 2 || payload.Messages[0].Content != "SCHEMA" {
			t.Fatalf("messages = %#v", payload.Messages)
		}
		if payload.Messages[1].Content != "Generate a SQL query for: Top 10 Verkäufe" {
			t.Fatalf("user message = %q", payload.Messages[1].Content)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` + "```sql\\nSELECT 1\\n```" + `"}}]}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL, APIKey: "sk-test", Temperature: 0.1})
	result := provider.Complete(context.Background(), Prompt{System: "SCHEMA", Question: "Top 10 Verkäufe"})
	if result.Status != StatusOK {
		t.Fatalf("Status = %q err = %v", result.Status, result.Err)
	}
	if result.Text != "```sql\nSELECT 1\n```" {
		t.Fatalf("Text = %q", result.Text)
	}
	if result.Provider != "openai" || result.Model != "gpt-4o-mini" {
		t.Fatalf("result = %#v", result)
	}
}

func TestOpenAIProviderWithoutKeyIsUnavailable(t *testing.T) {
	provider := NewOpenAIProvider(OpenAIConfig{})
	if provider.Available() {
		t.Fatal("Available() = true without key")
	}
	result := provider.Complete(context.Background(), Prompt{Question: "x"})
	if result.Status != StatusUnavailable || result.Err == nil {
		t.Fatalf("result = %#v", result)
	}
}

func TestOpenAIProviderErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Status
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`, want: StatusError},
		{name: "bad json", status: http.StatusOK, body: `{not json`, want: StatusError},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, want: StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL, APIKey: "sk-test"})
			result := provider.Complete(context.Background(), Prompt{Question: "x"})
			if result.Status != tt.want {
				t.Fatalf("Status = %q, want %q (err=%v)", result.Status, tt.want, result.Err)
			}
			if result.Err == nil || result.Text != "" {
				t.Fatalf("result = %#v", result)
			}
		})
	}
}

func TestOpenAIProviderTransportFailureIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := server.URL
	server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{BaseURL: baseURL, APIKey: "sk-test"})
	result := provider.Complete(context.Background(), Prompt{Question: "x"})
	if result.Status != StatusUnavailable {
		t.Fatalf("Status = %q", result.Status)
	}
	var urlErr interface{ Timeout() bool }
	if !errors.As(result.Err, &urlErr) {
		t.Fatalf("Err = %v, want transport error", result.Err)
	}
}

package nl2sql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestOllamaProviderProbeAndGenerate(t *testing.T) {
	var probes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			probes.Add(1)
			_, _ = w.Write([]byte(`{"models":[]}`))
		case "/api/generate":
			var payload struct {
				Model   string `json:"model"`
				Prompt  string `json:"prompt"`
				Stream  bool   `json:"stream"`
				Options struct {
					Temperature float64 `json:"temperature"`
				} `json:"options"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if payload.Model != "llama3" || payload.Stream || payload.Options.Temperature != 0.1 {
				t.Fatalf("payload = %#v", payload)
			}
			if payload.Prompt != "SCHEMA\n\nUser Query: Produkte\n\nSQL Query:" {
				t.Fatalf("prompt = %q", payload.Prompt)
			}
			_, _ = w.Write([]byte(`{"response":" SELECT * FROM products "}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	provider := NewOllamaProvider(context.Background(), OllamaConfig{BaseURL: server.URL + "/", Temperature: 0.1})
	if !provider.Available() {
		t.Fatalf("Available() = false, init error = %v", provider.InitError())
	}
	for i := 0; i < 2; i++ {
		result := provider.Complete(context.Background(), Prompt{System: "SCHEMA", Question: "Produkte"})
		if result.Status != StatusOK {
			t.Fatalf("Status = %q err = %v", result.Status, result.Err)
		}
		if result.Text != " SELECT * FROM products " {
			t.Fatalf("Text = %q", result.Text)
		}
	}
	if got := probes.Load(); got != 1 {
		t.Fatalf("probe count = %d, want 1", got)
	}
}

func TestOllamaProviderUnreachableStaysUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := server.URL
	server.Close()

	provider := NewOllamaProvider(context.Background(), OllamaConfig{BaseURL: baseURL})
	if provider.Available() {
		t.Fatal("Available() = true for closed server")
	}
	result := provider.Complete(context.Background(), Prompt{Question: "x"})
	if result.Status != StatusUnavailable || result.Err == nil {
		t.Fatalf("result = %#v", result)
	}
}

func TestOllamaProviderProbeRejectsNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := NewOllamaProvider(context.Background(), OllamaConfig{BaseURL: server.URL})
	if provider.Available() {
		t.Fatal("Available() = true for failing probe")
	}
}

func TestOllamaProviderGenerateErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer server.Close()

	provider := NewOllamaProvider(context.Background(), OllamaConfig{BaseURL: server.URL})
	result := provider.Complete(context.Background(), Prompt{Question: "x"})
	if result.Status != StatusError {
		t.Fatalf("Status = %q", result.Status)
	}
}

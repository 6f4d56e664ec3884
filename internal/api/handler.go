package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/salesql/salesql/internal/config"
	"github.com/salesql/salesql/internal/crashlog"
	"github.com/salesql/salesql/internal/nl2sql"
	"github.com/salesql/salesql/internal/observability"
	"github.com/salesql/salesql/internal/pipeline"
	"github.com/salesql/salesql/internal/query"
)

// QueryService is the part of pipeline.Service the handlers use.
type QueryService interface {
	Run(ctx context.Context, request pipeline.Request) pipeline.Response
	Translate(ctx context.Context, question string) pipeline.Translation
}

type Dependencies struct {
	Logger            *slog.Logger
	Service           QueryService
	Provider          nl2sql.Provider
	Executor          query.Executor
	Crashes           *crashlog.Recorder
	DependencyTimeout time.Duration
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	if deps.Provider == nil {
		deps.Provider = nl2sql.Disabled{}
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "online",
			"service":      cfg.Service.Name,
			"version":      cfg.Service.Version,
			"llm_provider": deps.Provider.Name(),
			"model":        deps.Provider.Model(),
		})
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		handleHealth(deps, w, r)
	})

	mux.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		handleQuery(deps, w, r)
	})
	mux.HandleFunc("POST /translate", func(w http.ResponseWriter, r *http.Request) {
		handleTranslate(deps, w, r)
	})
	mux.HandleFunc("GET /schema", handleSchema)
	mux.HandleFunc("GET /tables", handleTables)

	mux.Handle("GET /metrics", promhttp.Handler())

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	middlewares = append(middlewares,
		RecoverMiddleware(deps.Logger, deps.Crashes),
		CORSMiddleware(cfg.CORS.AllowedOrigins),
	)
	return chain(mux, middlewares...)
}

func handleHealth(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	database := "disconnected"
	if deps.Executor != nil {
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Executor.Ping(ctx); err != nil {
			if deps.Logger != nil {
				observability.WithTrace(r.Context(), deps.Logger).Warn("database health check failed", "error", err)
			}
		} else {
			database = "connected"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"database":      database,
		"llm_provider":  deps.Provider.Name(),
		"llm_available": deps.Provider.Available(),
	})
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/salesql/salesql/internal/api"
	"github.com/salesql/salesql/internal/config"
	"github.com/salesql/salesql/internal/crashlog"
	"github.com/salesql/salesql/internal/nl2sql"
	"github.com/salesql/salesql/internal/observability"
	"github.com/salesql/salesql/internal/pipeline"
	"github.com/salesql/salesql/internal/query"
	"github.com/salesql/salesql/internal/query/postgrest"
	"github.com/salesql/salesql/internal/query/sqlexec"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load env file", slog.Any("error", err))
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv("salesql-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), cfg.LLM.ProbeTimeout+time.Second)
	provider, err := nl2sql.New(startupCtx, nl2sql.Settings{
		Provider: cfg.LLM.Provider,
		OpenAI: nl2sql.OpenAIConfig{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKey:      cfg.OpenAI.APIKey,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
		},
		Ollama: nl2sql.OllamaConfig{
			BaseURL:      cfg.Ollama.BaseURL,
			Model:        cfg.Ollama.Model,
			Temperature:  cfg.LLM.Temperature,
			Timeout:      cfg.LLM.Timeout,
			ProbeTimeout: cfg.LLM.ProbeTimeout,
		},
	}, logger)
	cancelStartup()
	if err != nil {
		logger.Error("failed to initialize llm provider", slog.Any("error", err))
		os.Exit(1)
	}

	executor, err := newExecutor(cfg)
	if err != nil {
		logger.Error("failed to initialize query executor", slog.Any("error", err))
		os.Exit(1)
	}

	crashes := crashlog.NewFileRecorder(cfg.CrashLog.Path)
	defer func() { _ = crashes.Close() }()

	service := pipeline.NewService(provider, executor, pipeline.Options{
		FallbackEnabled: cfg.Fallback.Enabled,
		FallbackOnError: cfg.Fallback.OnError,
		DefaultMaxRows:  cfg.Executor.DefaultMaxRows,
	}, logger)

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:            logger,
		Service:           service,
		Provider:          provider,
		Executor:          executor,
		Crashes:           crashes,
		DependencyTimeout: cfg.HTTP.DependencyTimeout,
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("llm_provider", provider.Name()),
			slog.String("model", provider.Model()),
			slog.String("executor", cfg.Executor.Kind),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func newExecutor(cfg config.Config) (query.Executor, error) {
	switch cfg.Executor.Kind {
	case config.ExecutorPostgREST:
		mode, err := query.ParseLimitMode(cfg.Executor.RowLimitMode, query.LimitTruncate)
		if err != nil {
			return nil, err
		}
		return postgrest.New(postgrest.Config{
			URL:       cfg.PostgREST.URL,
			APIKey:    cfg.PostgREST.APIKey,
			Function:  cfg.PostgREST.Function,
			Timeout:   cfg.Database.QueryTimeout,
			LimitMode: mode,
		})
	default:
		mode, err := query.ParseLimitMode(cfg.Executor.RowLimitMode, query.LimitNone)
		if err != nil {
			return nil, err
		}
		return sqlexec.New(sqlexec.Config{
			Driver:       cfg.Database.Driver,
			DSN:          cfg.Database.DSN,
			QueryTimeout: cfg.Database.QueryTimeout,
			LimitMode:    mode,
		})
	}
}

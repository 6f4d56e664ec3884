// Package pipeline runs one natural-language question through prompt
// composition, completion, sanitizing and execution.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/salesql/salesql/internal/fallback"
	"github.com/salesql/salesql/internal/nl2sql"
	"github.com/salesql/salesql/internal/observability"
	"github.com/salesql/salesql/internal/query"
	"github.com/salesql/salesql/internal/schemactx"
)

type Stage string

const (
	StageReceived            Stage = "RECEIVED"
	StagePromptComposed      Stage = "PROMPT_COMPOSED"
	StageCompletionObtained  Stage = "COMPLETION_OBTAINED"
	StageProviderUnavailable Stage = "PROVIDER_UNAVAILABLE"
	StageProviderError       Stage = "PROVIDER_ERROR"
	StageDemoFallback        Stage = "DEMO_FALLBACK"
	StageSQLSanitized        Stage = "SQL_SANITIZED"
	StageExecuted            Stage = "EXECUTED"
	StageExecutionFailed     Stage = "EXECUTION_FAILED"
	StageResponded           Stage = "RESPONDED"
)

const (
	SourceModel        = "model"
	SourceDemoFallback = "demo_fallback"
)

const (
	CodeGenerationFailed   = "GENERATION_FAILED"
	CodeDatabaseConnection = "DATABASE_CONNECTION_FAILED"
	CodeSQLExecution       = "SQL_EXECUTION_FAILED"
)

type Options struct {
	FallbackEnabled bool
	FallbackOnError bool
	DefaultMaxRows  int
	// SchemaContext overrides the built-in schema description.
	SchemaContext string
}

type Request struct {
	Question string
	MaxRows  int
}

// Response is the wire shape of a query answer. Data is never nil and
// RowCount always equals len(Data).
type Response struct {
	Success    bool        `json:"success"`
	SQLQuery   string      `json:"sql_query"`
	Data       []query.Row `json:"data"`
	Error      *string     `json:"error"`
	ErrorCode  string      `json:"error_code,omitempty"`
	RowCount   int         `json:"row_count"`
	Source     string      `json:"source,omitempty"`
	Provider   string      `json:"provider,omitempty"`
	Model      string      `json:"model,omitempty"`
	IncidentID string      `json:"incident_id,omitempty"`
}

// Translation is the SQL produced for a question without executing it.
type Translation struct {
	SQL       string
	Source    string
	Provider  string
	Model     string
	Template  string
	ErrorCode string
	Err       error
}

func (t Translation) OK() bool {
	return t.Err == nil && t.SQL != ""
}

type Service struct {
	provider nl2sql.Provider
	executor query.Executor
	schema   string
	opts     Options
	logger   *slog.Logger
}

func NewService(provider nl2sql.Provider, executor query.Executor, opts Options, logger *slog.Logger) *Service {
	if provider == nil {
		provider = nl2sql.Disabled{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	schema := opts.SchemaContext
	if schema == "" {
		schema = schemactx.Context()
	}
	return &Service{
		provider: provider,
		executor: executor,
		schema:   schema,
		opts:     opts,
		logger:   logger,
	}
}

// Translate composes the prompt, asks the provider and sanitizes the answer,
// substituting a demo query when the provider cannot help and fallback is on.
func (s *Service) Translate(ctx context.Context, question string) Translation {
	logger := observability.WithTrace(ctx, s.logger)
	s.stage(ctx, logger, StageReceived, slog.Int("question_len", len(question)))

	prompt := nl2sql.Prompt{System: s.schema, Question: question}
	s.stage(ctx, logger, StagePromptComposed, slog.String("provider", s.provider.Name()))

	result := s.provider.Complete(ctx, prompt)
	observability.ObserveCompletion(s.provider.Name(), string(result.Status))

	translation := Translation{Provider: result.Provider, Model: result.Model}
	if translation.Provider == "" {
		translation.Provider = s.provider.Name()
		translation.Model = s.provider.Model()
	}

	switch result.Status {
	case nl2sql.StatusOK:
		s.stage(ctx, logger, StageCompletionObtained, slog.Int("completion_len", len(result.Text)))
		translation.Source = SourceModel
		translation.SQL = nl2sql.SanitizeSQL(result.Text)
	case nl2sql.StatusUnavailable:
		s.stage(ctx, logger, StageProviderUnavailable, errAttr(result.Err))
		if !s.opts.FallbackEnabled {
			return generationFailed(translation, "llm provider unavailable", result.Err)
		}
		translation = s.fallback(ctx, logger, translation, question, "unavailable")
	default:
		s.stage(ctx, logger, StageProviderError, errAttr(result.Err))
		if !s.opts.FallbackEnabled || !s.opts.FallbackOnError {
			return generationFailed(translation, "llm provider error", result.Err)
		}
		translation = s.fallback(ctx, logger, translation, question, "error")
	}

	s.stage(ctx, logger, StageSQLSanitized, slog.String("source", translation.Source), slog.Int("sql_len", len(translation.SQL)))
	if translation.SQL == "" {
		return generationFailed(translation, "no SQL was generated", nil)
	}
	return translation
}

func (s *Service) fallback(ctx context.Context, logger *slog.Logger, translation Translation, question, reason string) Translation {
	template, sqlText := fallback.Select(question)
	observability.ObserveFallback(reason)
	s.stage(ctx, logger, StageDemoFallback, slog.String("template", template), slog.String("reason", reason))
	translation.Source = SourceDemoFallback
	translation.Template = template
	translation.SQL = nl2sql.SanitizeSQL(sqlText)
	return translation
}

// Run answers one request. It always returns a Response; failures are
// reported through Success, Error and ErrorCode.
func (s *Service) Run(ctx context.Context, request Request) Response {
	logger := observability.WithTrace(ctx, s.logger)
	translation := s.Translate(ctx, request.Question)

	response := Response{
		SQLQuery: translation.SQL,
		Data:     []query.Row{},
		Source:   translation.Source,
		Provider: translation.Provider,
		Model:    translation.Model,
	}
	if !translation.OK() {
		response.ErrorCode = translation.ErrorCode
		response.Error = errorText(translation.Err)
		s.stage(ctx, logger, StageResponded, slog.Bool("success", false), slog.String("error_code", response.ErrorCode))
		return response
	}
	if s.executor == nil {
		response.ErrorCode = CodeDatabaseConnection
		response.Error = errorText(errors.New("database executor is not configured"))
		s.stage(ctx, logger, StageResponded, slog.Bool("success", false), slog.String("error_code", response.ErrorCode))
		return response
	}

	maxRows := request.MaxRows
	if maxRows <= 0 {
		maxRows = s.opts.DefaultMaxRows
	}

	start := time.Now()
	result, err := s.executor.Execute(ctx, query.Request{SQL: translation.SQL, MaxRows: maxRows})
	if err != nil {
		kind := query.KindOf(err)
		observability.ObserveQuery(string(kind), 0, time.Since(start))
		s.stage(ctx, logger, StageExecutionFailed, slog.String("kind", string(kind)), errAttr(err))
		switch kind {
		case query.KindConnection:
			response.ErrorCode = CodeDatabaseConnection
			response.Error = errorText(fmt.Errorf("database connection failed: %w", err))
		default:
			response.ErrorCode = CodeSQLExecution
			response.Error = errorText(fmt.Errorf("sql execution failed: %w", err))
		}
		s.stage(ctx, logger, StageResponded, slog.Bool("success", false), slog.String("error_code", response.ErrorCode))
		return response
	}

	rows := result.Rows
	if rows == nil {
		rows = []query.Row{}
	}
	observability.ObserveQuery("ok", len(rows), time.Since(start))
	s.stage(ctx, logger, StageExecuted, slog.Int("rows", len(rows)), slog.Int64("duration_ms", result.Duration.Milliseconds()))

	response.Success = true
	response.Data = rows
	response.RowCount = len(rows)
	s.stage(ctx, logger, StageResponded, slog.Bool("success", true))
	return response
}

func (s *Service) stage(ctx context.Context, logger *slog.Logger, stage Stage, attrs ...slog.Attr) {
	logger.LogAttrs(ctx, slog.LevelDebug, "pipeline_stage", append([]slog.Attr{slog.String("stage", string(stage))}, attrs...)...)
}

func generationFailed(translation Translation, message string, cause error) Translation {
	translation.SQL = ""
	translation.ErrorCode = CodeGenerationFailed
	if cause != nil {
		translation.Err = fmt.Errorf("%s: %w", message, cause)
	} else {
		translation.Err = errors.New(message)
	}
	return translation
}

func errAttr(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func errorText(err error) *string {
	if err == nil {
		return nil
	}
	text := err.Error()
	return &text
}

// Package query defines the executor contract shared by the direct SQL and
// PostgREST backends.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Request struct {
	SQL     string
	MaxRows int
}

type Result struct {
	Columns  []string
	Rows     []Row
	Duration time.Duration
}

type Executor interface {
	Execute(ctx context.Context, request Request) (Result, error)
	Ping(ctx context.Context) error
}

type Kind string

const (
	KindConnection Kind = "connection"
	KindExecution  Kind = "execution"
)

// Error classifies an executor failure so callers can tell an unreachable
// database from a rejected statement.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " error"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func ConnectionError(format string, args ...any) error {
	return &Error{Kind: KindConnection, Err: fmt.Errorf(format, args...)}
}

func ExecutionError(format string, args ...any) error {
	return &Error{Kind: KindExecution, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the Kind of err, defaulting to KindExecution for errors that
// were not classified by an executor.
func KindOf(err error) Kind {
	var queryErr *Error
	if errors.As(err, &queryErr) {
		return queryErr.Kind
	}
	return KindExecution
}

type LimitMode string

const (
	LimitNone     LimitMode = "none"
	LimitTruncate LimitMode = "truncate"
	LimitWrap     LimitMode = "wrap"
)

func ParseLimitMode(raw string, fallback LimitMode) (LimitMode, error) {
	switch LimitMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return fallback, nil
	case LimitNone:
		return LimitNone, nil
	case LimitTruncate:
		return LimitTruncate, nil
	case LimitWrap:
		return LimitWrap, nil
	default:
		return "", fmt.Errorf("unsupported row limit mode %q", raw)
	}
}

// PrepareSQL returns the statement to send to the database for mode. Only
// LimitWrap rewrites the text; the other modes pass it through verbatim.
// The closing paren goes on its own line so a trailing line comment cannot
// swallow it.
func PrepareSQL(sqlText string, maxRows int, mode LimitMode) string {
	if mode != LimitWrap || maxRows <= 0 {
		return sqlText
	}
	return fmt.Sprintf("SELECT * FROM (\n%s\n) AS q LIMIT %d", StripTrailingSemicolons(sqlText), maxRows)
}

// CapRows applies LimitTruncate to already fetched rows.
func CapRows(rows []Row, maxRows int, mode LimitMode) []Row {
	if mode != LimitTruncate || maxRows <= 0 || len(rows) <= maxRows {
		return rows
	}
	return rows[:maxRows]
}

func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

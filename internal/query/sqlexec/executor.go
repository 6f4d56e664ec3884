// Package sqlexec runs generated SQL through database/sql drivers, opening a
// fresh connection for every request.
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"

	"github.com/salesql/salesql/internal/query"
)

// Opener returns an unpinged handle for dsn.
type Opener func(ctx context.Context, dsn string) (*sql.DB, error)

func DriverOpener(driverName string) Opener {
	return func(_ context.Context, dsn string) (*sql.DB, error) {
		return sql.Open(driverName, dsn)
	}
}

type Config struct {
	Driver       string
	DSN          string
	QueryTimeout time.Duration
	LimitMode    query.LimitMode
}

type Executor struct {
	dsn          string
	driver       string
	queryTimeout time.Duration
	limitMode    query.LimitMode
	open         Opener
}

func New(cfg Config) (*Executor, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "pgx"
	}
	switch driver {
	case "pgx", "duckdb", "sqlite", "mysql":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	return NewWithOpener(cfg, DriverOpener(driver)), nil
}

// NewWithOpener is New with a caller supplied opener and no driver checks.
func NewWithOpener(cfg Config, open Opener) *Executor {
	mode := cfg.LimitMode
	if mode == "" {
		mode = query.LimitNone
	}
	return &Executor{
		dsn:          cfg.DSN,
		driver:       cfg.Driver,
		queryTimeout: cfg.QueryTimeout,
		limitMode:    mode,
		open:         open,
	}
}

func (e *Executor) connect(ctx context.Context) (*sql.DB, error) {
	db, err := e.open(ctx, e.dsn)
	if err != nil {
		return nil, query.ConnectionError("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, query.ConnectionError("connect database: %w", err)
	}
	return db, nil
}

func (e *Executor) Ping(ctx context.Context) error {
	db, err := e.connect(ctx)
	if err != nil {
		return err
	}
	return db.Close()
}

func (e *Executor) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	start := time.Now()
	db, err := e.connect(ctx)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = db.Close() }()

	queryCtx := ctx
	if e.queryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, e.queryTimeout)
		defer cancel()
	}

	sqlText := query.PrepareSQL(request.SQL, request.MaxRows, e.limitMode)
	rows, err := db.QueryContext(queryCtx, sqlText)
	if err != nil {
		return query.Result{}, query.ExecutionError("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, query.ExecutionError("query columns: %w", err)
	}

	resultRows := make([]query.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, query.ExecutionError("scan row: %w", err)
		}
		for i := range values {
			values[i] = query.NormalizeValue(values[i])
		}
		resultRows = append(resultRows, query.NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, query.ExecutionError("iterate rows: %w", err)
	}

	return query.Result{
		Columns:  columns,
		Rows:     query.CapRows(resultRows, request.MaxRows, e.limitMode),
		Duration: time.Since(start),
	}, nil
}

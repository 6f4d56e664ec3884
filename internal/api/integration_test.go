//go:build integration

package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/salesql/salesql/internal/migrations"
	"github.com/salesql/salesql/internal/nl2sql"
	"github.com/salesql/salesql/internal/pipeline"
	"github.com/salesql/salesql/internal/query"
	"github.com/salesql/salesql/internal/query/sqlexec"
	"github.com/salesql/salesql/internal/seed"
)

type staticProvider struct {
	sql string
}

func (p staticProvider) Name() string    { return "static" }
func (p staticProvider) Model() string   { return "static-1" }
func (p staticProvider) Available() bool { return true }

func (p staticProvider) Complete(context.Context, nl2sql.Prompt) nl2sql.Result {
	return nl2sql.Result{Status: nl2sql.StatusOK, Text: "```sql\n" + p.sql + "\n```", Provider: p.Name(), Model: p.Model()}
}

func TestQueryFallbackAgainstSeededPostgres(t *testing.T) {
	testDSN := prepareSalesDatabase(t)
	handler := newIntegrationHandler(t, testDSN, nl2sql.Disabled{})

	response := postQuery(t, handler, map[string]any{"query": "Top 10 Verkäufe"}, http.StatusOK)
	if response["success"] != true {
		t.Fatalf("success = %v, body=%v", response["success"], response)
	}
	if response["source"] != pipeline.SourceDemoFallback {
		t.Fatalf("source = %v", response["source"])
	}
	if response["row_count"] != float64(10) {
		t.Fatalf("row_count = %v", response["row_count"])
	}
	rows := response["data"].([]any)
	first := rows[0].(map[string]any)
	for _, column := range []string{"id", "name", "customer", "quantity", "total_amount", "sale_date"} {
		if _, ok := first[column]; !ok {
			t.Fatalf("row missing column %q: %v", column, first)
		}
	}

	products := postQuery(t, handler, map[string]any{"natural_language_query": "Welche Produkte?"}, http.StatusOK)
	if products["sql_query"] != "SELECT * FROM products ORDER BY price DESC LIMIT 10" {
		t.Fatalf("sql_query = %v", products["sql_query"])
	}
}

func TestQueryModelSQLAgainstSeededPostgres(t *testing.T) {
	testDSN := prepareSalesDatabase(t)

	handler := newIntegrationHandler(t, testDSN, staticProvider{sql: "SELECT COUNT(*) AS total FROM sales;"})
	response := postQuery(t, handler, map[string]any{"query": "Wie viele Verkäufe?"}, http.StatusOK)
	if response["success"] != true || response["source"] != pipeline.SourceModel {
		t.Fatalf("response = %v", response)
	}
	first := response["data"].([]any)[0].(map[string]any)
	if first["total"] != float64(50) {
		t.Fatalf("total = %v", first["total"])
	}

	broken := newIntegrationHandler(t, testDSN, staticProvider{sql: "SELECT * FROM verkaeufe"})
	failed := postQuery(t, broken, map[string]any{"query": "Alle Verkäufe"}, http.StatusOK)
	if failed["success"] != false || failed["error_code"] != pipeline.CodeSQLExecution {
		t.Fatalf("response = %v", failed)
	}
	if !strings.Contains(fmt.Sprint(failed["error"]), "verkaeufe") {
		t.Fatalf("error = %v", failed["error"])
	}
}

func prepareSalesDatabase(t *testing.T) string {
	t.Helper()
	adminDSN := strings.TrimSpace(os.Getenv("SALESQL_TEST_DATABASE_DSN"))
	if adminDSN == "" {
		t.Skip("SALESQL_TEST_DATABASE_DSN is not set")
	}

	testDSN, cleanup := createTemporaryDatabase(t, adminDSN)
	t.Cleanup(cleanup)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", testDSN)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	if _, err := migrations.NewRunner().Up(ctx, db, 0); err != nil {
		t.Fatalf("migrations Up() error = %v", err)
	}

	conn, err := pgx.Connect(ctx, testDSN)
	if err != nil {
		t.Fatalf("pgx.Connect() error = %v", err)
	}
	defer func() { _ = conn.Close(context.Background()) }()

	loader, err := seed.NewLoader(conn)
	if err != nil {
		t.Fatalf("seed.NewLoader() error = %v", err)
	}
	cfg := seed.DefaultConfig()
	cfg.Seed = 2024
	if _, err := loader.Load(ctx, seed.NewGenerator(cfg.Seed).Generate(cfg), true); err != nil {
		t.Fatalf("loader.Load() error = %v", err)
	}
	return testDSN
}

func newIntegrationHandler(t *testing.T, dsn string, provider nl2sql.Provider) http.Handler {
	t.Helper()
	executor, err := sqlexec.New(sqlexec.Config{
		Driver:       "pgx",
		DSN:          dsn,
		QueryTimeout: 10 * time.Second,
		LimitMode:    query.LimitNone,
	})
	if err != nil {
		t.Fatalf("sqlexec.New() error = %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := pipeline.NewService(provider, executor, pipeline.Options{
		FallbackEnabled: true,
		DefaultMaxRows:  100,
	}, logger)
	return NewHandler(testConfig(t), Dependencies{
		Logger:   logger,
		Service:  service,
		Provider: provider,
		Executor: executor,
	})
}

func createTemporaryDatabase(t *testing.T, adminDSN string) (string, func()) {
	t.Helper()

	parsed, err := url.Parse(adminDSN)
	if err != nil {
		t.Fatalf("url.Parse(adminDSN) error = %v", err)
	}
	if strings.TrimPrefix(parsed.Path, "/") == "" {
		t.Fatal("admin DSN must include a database name")
	}

	adminDB, err := sql.Open("pgx", adminDSN)
	if err != nil {
		t.Fatalf("sql.Open(adminDSN) error = %v", err)
	}

	name := fmt.Sprintf("salesql_it_api_%d", time.Now().UnixNano())
	if _, err := adminDB.Exec(`CREATE DATABASE ` + name); err != nil {
		t.Fatalf("CREATE DATABASE failed: %v", err)
	}

	testURL := *parsed
	testURL.Path = "/" + name
	testDSN := testURL.String()

	cleanup := func() {
		defer func() { _ = adminDB.Close() }()
		if _, err := adminDB.Exec(`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1`, name); err != nil {
			t.Fatalf("terminate test db sessions: %v", err)
		}
		if _, err := adminDB.Exec(`DROP DATABASE ` + name); err != nil {
			t.Fatalf("DROP DATABASE failed: %v", err)
		}
	}
	return testDSN, cleanup
}

func postQuery(t *testing.T, handler http.Handler, payload map[string]any, expectedStatus int) map[string]any {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != expectedStatus {
		t.Fatalf("query status = %d, want %d, body=%s", rr.Code, expectedStatus, rr.Body.String())
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode query response error = %v", err)
	}
	return response
}

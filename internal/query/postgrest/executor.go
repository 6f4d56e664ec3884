// Package postgrest executes SQL through a PostgREST RPC function such as
// the execute_sql function installed by the migrations.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/salesql/salesql/internal/query"
)

type Config struct {
	URL       string
	APIKey    string
	Function  string
	Timeout   time.Duration
	LimitMode query.LimitMode
}

type Executor struct {
	baseURL   string
	apiKey    string
	function  string
	limitMode query.LimitMode
	client    *http.Client
}

func New(cfg Config) (*Executor, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("postgrest url is required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("postgrest api key is required")
	}
	function := strings.TrimSpace(cfg.Function)
	if function == "" {
		function = "execute_sql"
	}
	mode := cfg.LimitMode
	if mode == "" {
		mode = query.LimitTruncate
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		baseURL:   baseURL,
		apiKey:    apiKey,
		function:  function,
		limitMode: mode,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (e *Executor) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	start := time.Now()
	body, err := json.Marshal(map[string]string{
		"query": query.PrepareSQL(request.SQL, request.MaxRows, e.limitMode),
	})
	if err != nil {
		return query.Result{}, query.ExecutionError("marshal rpc payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/rest/v1/rpc/"+e.function, bytes.NewReader(body))
	if err != nil {
		return query.Result{}, query.ConnectionError("build rpc request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	e.authorize(httpReq)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return query.Result{}, query.ConnectionError("call rpc %s: %w", e.function, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return query.Result{}, query.ExecutionError("rpc %s failed status=%d body=%s", e.function, resp.StatusCode, readSnippet(resp.Body))
	}

	rows, err := decodeRows(resp.Body)
	if err != nil {
		return query.Result{}, query.ExecutionError("decode rpc result: %w", err)
	}
	rows = query.CapRows(rows, request.MaxRows, e.limitMode)

	var columns []string
	if len(rows) > 0 {
		columns = rows[0].Columns()
	}
	return query.Result{
		Columns:  columns,
		Rows:     rows,
		Duration: time.Since(start),
	}, nil
}

func (e *Executor) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/rest/v1/sales?select=id&limit=1", nil)
	if err != nil {
		return query.ConnectionError("build ping request: %w", err)
	}
	e.authorize(httpReq)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return query.ConnectionError("ping postgrest: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return query.ConnectionError("ping postgrest: status=%d", resp.StatusCode)
	}
	return nil
}

func (e *Executor) authorize(req *http.Request) {
	req.Header.Set("apikey", e.apiKey)
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
}

// decodeRows reads a JSON array of objects. A null body yields no rows.
func decodeRows(body io.Reader) ([]query.Row, error) {
	decoder := json.NewDecoder(body)
	decoder.UseNumber()

	token, err := decoder.Token()
	if err != nil {
		if err == io.EOF {
			return []query.Row{}, nil
		}
		return nil, err
	}
	if token == nil {
		return []query.Row{}, nil
	}
	if delim, ok := token.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("expected JSON array, got %v", token)
	}

	rows := make([]query.Row, 0)
	for decoder.More() {
		row, err := query.DecodeRow(decoder)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if _, err := decoder.Token(); err != nil {
		return nil, err
	}
	return rows, nil
}

func readSnippet(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 512))
	return strings.TrimSpace(string(raw))
}

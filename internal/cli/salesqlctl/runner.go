// Package salesqlctl implements the salesqlctl command line client of the
// salesql HTTP API.
package salesqlctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/salesql/salesql/internal/pipeline"
	"github.com/salesql/salesql/internal/schemactx"
)

const defaultBaseURL = "http://localhost:8000"

// DefaultTimeout leaves room for a full LLM timeout (30s by default on the
// server) plus query execution.
const DefaultTimeout = 90 * time.Second

// errReported marks a failure whose message was already written to stderr.
var errReported = errors.New("command failed")

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// Run executes one salesqlctl invocation and returns its exit code: 0 on
// success, 1 when the API call fails and 2 on usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	root := NewRootCommand(defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errReported):
		return 1
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		_, _ = fmt.Fprintln(stderr, reqErr.Error())
		return 1
	}
	_, _ = fmt.Fprintf(stderr, "error: %v\n\n", err)
	_, _ = fmt.Fprint(stderr, root.UsageString())
	return 2
}

func NewRootCommand(defaults Options) *cobra.Command {
	baseURL := firstNonEmpty(defaults.BaseURL, defaultBaseURL)
	timeout := durationOr(defaults.Timeout, DefaultTimeout)

	root := &cobra.Command{
		Use:           "salesqlctl",
		Short:         "Ask the salesql API questions about sales data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&baseURL, "base-url", baseURL, "salesql API base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "HTTP timeout, keep it above the server's SALESQL_LLM_TIMEOUT")

	client := func() *apiClient {
		httpClient := defaults.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: timeout}
		}
		return &apiClient{http: httpClient, baseURL: baseURL}
	}

	root.AddCommand(
		newHealthCommand(client),
		newTablesCommand(client),
		newSchemaCommand(client),
		newQueryCommand(client),
		newTranslateCommand(client),
	)
	return root
}

func newHealthCommand(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show API, database and LLM status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var health struct {
				Status       string `json:"status"`
				Database     string `json:"database"`
				LLMProvider  string `json:"llm_provider"`
				LLMAvailable bool   `json:"llm_available"`
			}
			if err := client().getJSON(cmd.Context(), "/health", &health); err != nil {
				return err
			}
			return renderKeyValues(cmd.OutOrStdout(), [][]string{
				{"status", health.Status},
				{"database", health.Database},
				{"llm_provider", health.LLMProvider},
				{"llm_available", fmt.Sprint(health.LLMAvailable)},
			})
		},
	}
}

func newTablesCommand(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables questions can refer to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var payload struct {
				Tables []string `json:"tables"`
			}
			if err := client().getJSON(cmd.Context(), "/tables", &payload); err != nil {
				return err
			}
			return renderBullets(cmd.OutOrStdout(), payload.Tables)
		},
	}
}

func newSchemaCommand(client func() *apiClient) *cobra.Command {
	var showContext bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Describe the sales schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var payload struct {
				Schema  schemactx.Schema `json:"schema"`
				Context string           `json:"context"`
			}
			if err := client().getJSON(cmd.Context(), "/schema", &payload); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if showContext {
				_, _ = fmt.Fprintln(out, payload.Context)
				return nil
			}

			names := make([]string, 0, len(payload.Schema.Tables))
			for name := range payload.Schema.Tables {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				table := payload.Schema.Tables[name]
				_, _ = fmt.Fprintf(out, "%s: %s\n", name, table.Description)
				data := [][]string{{"column", "type", "description"}}
				for _, column := range table.Columns {
					data = append(data, []string{column.Name, column.Type, column.Description})
				}
				if err := renderTable(out, data); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showContext, "context", false, "print the prompt context sent to the model")
	return cmd
}

type questionPayload struct {
	Query   string `json:"query"`
	MaxRows int    `json:"max_rows,omitempty"`
}

func newQueryCommand(client func() *apiClient) *cobra.Command {
	var maxRows int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Translate a question to SQL, run it and print the rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxRows < 0 {
				return fmt.Errorf("--max-rows must be >= 0")
			}
			raw, err := client().do(cmd.Context(), http.MethodPost, "/query", questionPayload{
				Query:   strings.Join(args, " "),
				MaxRows: maxRows,
			})
			if asJSON && len(raw) > 0 {
				if pretty, ok := prettyJSON(raw); ok {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), pretty)
				}
			}

			var response pipeline.Response
			if decodeErr := json.Unmarshal(raw, &response); decodeErr != nil {
				if err != nil {
					return err
				}
				return &requestError{Err: fmt.Errorf("decode response: %w", decodeErr)}
			}
			if !response.Success {
				reportFailure(cmd.ErrOrStderr(), response.ErrorCode, response.Error, response.IncidentID)
				return errReported
			}
			if asJSON {
				return nil
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "SQL: %s\n", response.SQLQuery)
			_, _ = fmt.Fprintf(out, "source: %s\n", describeSource(response.Source, response.Provider, response.Model))
			if err := renderRows(out, response.Data); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "%d row(s)\n", response.RowCount)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "maximum rows to return (0 uses the server default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

func newTranslateCommand(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "translate <question>",
		Short: "Translate a question to SQL without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := client().do(cmd.Context(), http.MethodPost, "/translate", questionPayload{Query: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			var translation struct {
				Success   bool    `json:"success"`
				SQLQuery  string  `json:"sql_query"`
				Source    string  `json:"source"`
				Provider  string  `json:"provider"`
				Model     string  `json:"model"`
				Error     *string `json:"error"`
				ErrorCode string  `json:"error_code"`
			}
			if err := json.Unmarshal(raw, &translation); err != nil {
				return &requestError{Err: fmt.Errorf("decode response: %w", err)}
			}
			if !translation.Success {
				reportFailure(cmd.ErrOrStderr(), translation.ErrorCode, translation.Error, "")
				return errReported
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), translation.SQLQuery)
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "source: %s\n", describeSource(translation.Source, translation.Provider, translation.Model))
			return nil
		},
	}
}

func reportFailure(w io.Writer, code string, message *string, incidentID string) {
	text := "unknown error"
	if message != nil && strings.TrimSpace(*message) != "" {
		text = *message
	}
	if code != "" {
		text = code + ": " + text
	}
	if incidentID != "" {
		text += " (incident " + incidentID + ")"
	}
	_, _ = fmt.Fprintln(w, "query failed: "+text)
}

func describeSource(source, provider, model string) string {
	if provider == "" {
		return source
	}
	if model == "" {
		return fmt.Sprintf("%s (%s)", source, provider)
	}
	return fmt.Sprintf("%s (%s/%s)", source, provider, model)
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

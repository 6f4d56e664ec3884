package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/salesql/salesql/internal/crashlog"
	"github.com/salesql/salesql/internal/observability"
	"github.com/salesql/salesql/internal/pipeline"
	"github.com/salesql/salesql/internal/query"
)

const codeInternalError = "INTERNAL_ERROR"

// RecoverMiddleware turns a panic into a 500 response carrying an incident
// id and records the stack in the crash log.
func RecoverMiddleware(logger *slog.Logger, crashes *crashlog.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracked := &commitTracker{ResponseWriter: w}
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				incidentID := crashlog.NewIncidentID()
				traceID := observability.TraceIDFromContext(r.Context())
				stack := debug.Stack()
				observability.IncrementCrashes()

				if crashes != nil {
					if err := crashes.Record(crashlog.Incident{
						ID:      incidentID,
						TraceID: traceID,
						Method:  r.Method,
						Path:    r.URL.Path,
						Panic:   recovered,
						Stack:   stack,
					}); err != nil && logger != nil {
						logger.Error("write crash log failed", "error", err, "incident_id", incidentID)
					}
				}
				if logger != nil {
					logger.Error("unhandled panic",
						"incident_id", incidentID,
						"trace_id", traceID,
						"panic", fmt.Sprint(recovered),
						"response_committed", tracked.committed,
					)
				}
				// Headers are gone; a second document would corrupt the body.
				if tracked.committed {
					return
				}

				message := "internal server error (incident " + incidentID + ")"
				writeJSON(w, http.StatusInternalServerError, pipeline.Response{
					Data:       []query.Row{},
					Error:      &message,
					ErrorCode:  codeInternalError,
					IncidentID: incidentID,
				})
			}()
			next.ServeHTTP(tracked, r)
		})
	}
}

// commitTracker records whether the wrapped handler started the response.
type commitTracker struct {
	http.ResponseWriter
	committed bool
}

func (t *commitTracker) WriteHeader(status int) {
	t.committed = true
	t.ResponseWriter.WriteHeader(status)
}

func (t *commitTracker) Write(body []byte) (int, error) {
	t.committed = true
	return t.ResponseWriter.Write(body)
}

func (t *commitTracker) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}

// CORSMiddleware allows credentialed cross-origin calls from the listed
// origins and answers preflight requests itself.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	allowAll := false
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			allowAll = true
			continue
		}
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			_, ok := allowed[origin]
			if !ok && !allowAll {
				next.ServeHTTP(w, r)
				return
			}

			header := w.Header()
			header.Add("Vary", "Origin")
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				header.Add("Vary", "Access-Control-Request-Method")
				header.Add("Vary", "Access-Control-Request-Headers")
				header.Set("Access-Control-Allow-Methods", r.Header.Get("Access-Control-Request-Method"))
				if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
					header.Set("Access-Control-Allow-Headers", requested)
				}
				header.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	completionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesql_completions_total",
			Help: "Completion provider calls by provider and outcome status.",
		},
		[]string{"provider", "status"},
	)
	fallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesql_fallback_total",
			Help: "Requests answered with a demo fallback query, by reason.",
		},
		[]string{"reason"},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesql_query_executions_total",
			Help: "SQL executions by outcome.",
		},
		[]string{"outcome"},
	)
	queryDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "salesql_query_duration_ms",
			Help:    "SQL execution latency in milliseconds, connection setup included.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "salesql_query_rows_returned",
			Help:    "Rows returned per successful execution.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
		},
	)
	crashesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "salesql_crashes_total",
			Help: "Requests that ended in a recovered panic.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		completionsTotal,
		fallbackTotal,
		queryExecutionsTotal,
		queryDurationMs,
		queryRowsReturned,
		crashesTotal,
	)
}

func ObserveCompletion(provider, status string) {
	completionsTotal.WithLabelValues(provider, status).Inc()
}

func ObserveFallback(reason string) {
	fallbackTotal.WithLabelValues(reason).Inc()
}

// ObserveQuery records one execution. outcome is "ok" or the error kind.
func ObserveQuery(outcome string, rows int, elapsed time.Duration) {
	queryExecutionsTotal.WithLabelValues(outcome).Inc()
	queryDurationMs.Observe(float64(elapsed.Milliseconds()))
	if outcome == "ok" {
		queryRowsReturned.Observe(float64(rows))
	}
}

func IncrementCrashes() {
	crashesTotal.Inc()
}

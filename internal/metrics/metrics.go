// Package metrics exposes import counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "congregate",
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Total number of legacy rows processed broken down by table and outcome.",
	}, []string{"table", "outcome"})

	importFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "congregate",
		Subsystem: "import",
		Name:      "flushes_total",
		Help:      "Total number of batch flushes broken down by table and result.",
	}, []string{"table", "result"})

	importRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "congregate",
		Subsystem: "import",
		Name:      "runs_total",
		Help:      "Total number of mapper runs broken down by table and result.",
	}, []string{"table", "result"})

	importDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "congregate",
		Subsystem: "import",
		Name:      "duration_seconds",
		Help:      "Duration of mapper runs by table.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 4, 8),
	}, []string{"table"})
)

// Row outcomes.
const (
	OutcomeImported = "imported"
	OutcomeSkipped  = "skipped"
)

// RecordRow counts one processed row.
func RecordRow(table, outcome string) {
	if outcome == "" {
		outcome = OutcomeImported
	}
	importRows.WithLabelValues(table, outcome).Inc()
}

// RecordFlush counts one batch flush.
func RecordFlush(table string, err error) {
	importFlushes.WithLabelValues(table, result(err)).Inc()
}

// RecordRun counts one mapper run and observes its duration.
func RecordRun(table string, elapsed time.Duration, err error) {
	importRuns.WithLabelValues(table, result(err)).Inc()
	importDuration.WithLabelValues(table).Observe(elapsed.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_scan_runs_total",
			Help: "Scheduler scan runs by scan and status",
		},
		[]string{"scan", "status"},
	)

	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nudge_scan_duration_seconds",
			Help:    "Scheduler scan duration",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		},
		[]string{"scan"},
	)

	scanRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_scan_rows_total",
			Help: "Rows visited by scans, by outcome",
		},
		[]string{"scan", "outcome"},
	)

	deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_deliveries_total",
			Help: "Delivery attempts by notification kind, strategy and outcome",
		},
		[]string{"kind", "strategy", "outcome"},
	)

	tasksClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nudge_tasks_closed_total",
			Help: "Tasks retired from escalation because their anchor was unreachable",
		},
	)

	claimConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_claim_conflicts_total",
			Help: "Work skipped because another run already claimed it",
		},
		[]string{"scan"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordScan records one scan run
func RecordScan(scan, status string, duration time.Duration) {
	scanRunsTotal.WithLabelValues(scan, status).Inc()
	scanDuration.WithLabelValues(scan).Observe(duration.Seconds())
}

// RecordRow records the outcome of a single row inside a scan
func RecordRow(scan, outcome string) {
	scanRows.WithLabelValues(scan, outcome).Inc()
}

// RecordDelivery records a delivery attempt
func RecordDelivery(kind, strategy, outcome string) {
	deliveries.WithLabelValues(kind, strategy, outcome).Inc()
}

func RecordTaskClosed() {
	tasksClosed.Inc()
}

func RecordClaimConflict(scan string) {
	claimConflicts.WithLabelValues(scan).Inc()
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "localidades"

// Metrics holds the Prometheus collectors for ingestion runs and the HTTP API.
type Metrics struct {
	// Ingestion metrics.
	IngestRuns     *prometheus.CounterVec   // labels: mode, outcome={ok,error,busy}
	IngestRecords  *prometheus.CounterVec   // labels: sheet, outcome={read,stored,duplicate,failed}
	IngestDropped  *prometheus.CounterVec   // labels: sheet, reason
	IngestDefaults *prometheus.CounterVec   // labels: field
	IngestDuration *prometheus.HistogramVec // labels: mode

	// API metrics.
	HTTPRequests *prometheus.CounterVec   // labels: method, route, status
	HTTPDuration *prometheus.HistogramVec // labels: method, route

	ChangesPublished prometheus.Counter
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		IngestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      help("Ingestion runs by mode and outcome."),
		}, []string{"mode", "outcome"}),
		IngestRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_total",
			Help:      help("Workbook rows by sheet and outcome."),
		}, []string{"sheet", "outcome"}),
		IngestDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_dropped_total",
			Help:      help("Rows discarded during extraction by sheet and reason."),
		}, []string{"sheet", "reason"}),
		IngestDefaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_defaults_total",
			Help:      help("Cells replaced by their default value, by field."),
		}, []string{"field"}),
		IngestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      help("Duration of a complete ingestion run."),
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"mode"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      help("HTTP requests by method, route pattern and status."),
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      help("HTTP request latency by method and route pattern."),
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
		ChangesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_published_total",
			Help:      help("Locality change messages written to the change feed."),
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.IngestRuns,
		m.IngestRecords,
		m.IngestDropped,
		m.IngestDefaults,
		m.IngestDuration,
		m.HTTPRequests,
		m.HTTPDuration,
		m.ChangesPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

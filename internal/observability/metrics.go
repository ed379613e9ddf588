// Package observability provides Prometheus metrics for a processing run.
//
// The tool is not a long-running service, so metrics are kept in a private
// registry and optionally written to a node_exporter textfile on exit.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
	DBConnections   *prometheus.CounterVec

	// Batch metrics
	BatchesTotal *prometheus.CounterVec

	// Processing metrics
	IdentifiersRead     prometheus.Counter
	IdentifiersRejected prometheus.Counter
	RowsFetched         *prometheus.CounterVec

	// Output metrics
	ChartsRendered *prometheus.CounterVec
	ExportsWritten prometheus.Counter

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	LastRun     prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "black_heatmap"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		DBQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"database"}),
		DBQueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of failed database queries",
		}, []string{"database"}),
		DBConnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "connections_total",
			Help:      "Connection attempts by outcome",
		}, []string{"database", "status"}),

		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "blacklist",
			Name:      "batches_total",
			Help:      "Identity query batches by outcome",
		}, []string{"status"}),

		IdentifiersRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "input",
			Name:      "identifiers_read_total",
			Help:      "Identifiers read from input spreadsheets",
		}),
		IdentifiersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "input",
			Name:      "identifiers_rejected_total",
			Help:      "Identifiers dropped by format validation",
		}),
		RowsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processing",
			Name:      "rows_fetched_total",
			Help:      "Rows fetched per result table",
		}, []string{"table"}),

		ChartsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "charts_total",
			Help:      "Charts rendered by kind and outcome",
		}, []string{"kind", "status"}),
		ExportsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "exports_written_total",
			Help:      "Spreadsheet exports written",
		}),

		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Menu operations by name and status",
		}, []string{"operation", "status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Menu operation duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"operation"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_success_timestamp",
			Help:      "Unix timestamp of the last successful operation",
		}),
	}

	m.registry.MustRegister(
		m.DBQueryDuration, m.DBQueryErrors, m.DBConnections,
		m.BatchesTotal,
		m.IdentifiersRead, m.IdentifiersRejected, m.RowsFetched,
		m.ChartsRendered, m.ExportsWritten,
		m.RunsTotal, m.RunDuration, m.LastRun,
	)
	return m
}

// Registry exposes the underlying registry as a gatherer.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database).Observe(d.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database).Inc()
	}
}

// RecordConnect records a connection attempt.
func (m *Metrics) RecordConnect(database string, err error) {
	if m == nil {
		return
	}
	m.DBConnections.WithLabelValues(database, status(err)).Inc()
}

// RecordBatch records the outcome of one identity batch.
func (m *Metrics) RecordBatch(err error) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(status(err)).Inc()
}

// RecordIdentifiers records identifiers read and rejected.
func (m *Metrics) RecordIdentifiers(read, rejected int) {
	if m == nil {
		return
	}
	m.IdentifiersRead.Add(float64(read))
	m.IdentifiersRejected.Add(float64(rejected))
}

// RecordRows records the row count of a named result table.
func (m *Metrics) RecordRows(table string, n int) {
	if m == nil {
		return
	}
	m.RowsFetched.WithLabelValues(table).Add(float64(n))
}

// RecordChart records a chart render.
func (m *Metrics) RecordChart(kind string, ok bool) {
	if m == nil {
		return
	}
	s := "success"
	if !ok {
		s = "failure"
	}
	m.ChartsRendered.WithLabelValues(kind, s).Inc()
}

// RecordExport records a spreadsheet export.
func (m *Metrics) RecordExport() {
	if m == nil {
		return
	}
	m.ExportsWritten.Inc()
}

// RecordRun records a menu operation.
func (m *Metrics) RecordRun(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(operation, status(err)).Inc()
	m.RunDuration.WithLabelValues(operation).Observe(d.Seconds())
	if err == nil {
		m.LastRun.SetToCurrentTime()
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Package metrics exposes Prometheus counters for the scrape and query paths.
// All methods are safe on a nil *Manager, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "immo"

// Page kinds used as label values.
const (
	KindIndex  = "index"
	KindDetail = "detail"
)

// Manager owns every metric of the process.
type Manager struct {
	registry prometheus.Gatherer

	pagesFetched   *prometheus.CounterVec
	fetchErrors    *prometheus.CounterVec
	parseErrors    prometheus.Counter
	recordsScraped prometheus.Counter
	recordsDropped prometheus.Counter
	duplicates     prometheus.Counter

	queryRequests *prometheus.CounterVec
	queryDuration prometheus.Histogram
}

// New registers all metrics on a fresh registry, including Go runtime and
// process collectors.
func New() *Manager {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg)
}

// NewWithRegistry registers all metrics on reg.
func NewWithRegistry(reg *prometheus.Registry) *Manager {
	f := promauto.With(reg)
	return &Manager{
		registry: reg,
		pagesFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scrape", Name: "pages_fetched_total",
			Help: "Pages fetched successfully, by kind.",
		}, []string{"kind"}),
		fetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scrape", Name: "fetch_errors_total",
			Help: "Failed fetches, by kind.",
		}, []string{"kind"}),
		parseErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scrape", Name: "parse_errors_total",
			Help: "Detail pages that could not be parsed.",
		}),
		recordsScraped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scrape", Name: "records_total",
			Help: "Raw records extracted from detail pages.",
		}),
		recordsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "clean", Name: "records_dropped_total",
			Help: "Records dropped for missing identity.",
		}),
		duplicates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "clean", Name: "duplicates_total",
			Help: "Duplicate records removed.",
		}),
		queryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "requests_total",
			Help: "Dataset queries, by status code.",
		}, []string{"code"}),
		queryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "api", Name: "request_duration_seconds",
			Help:    "Dataset query latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Gatherer returns the registry for the /metrics handler.
func (m *Manager) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

func (m *Manager) PageFetched(kind string) {
	if m == nil {
		return
	}
	m.pagesFetched.WithLabelValues(kind).Inc()
}

func (m *Manager) FetchFailed(kind string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(kind).Inc()
}

func (m *Manager) ParseFailed() {
	if m == nil {
		return
	}
	m.parseErrors.Inc()
}

func (m *Manager) RecordScraped() {
	if m == nil {
		return
	}
	m.recordsScraped.Inc()
}

// Cleaned records the outcome of one clean pass.
func (m *Manager) Cleaned(dropped, duplicates int) {
	if m == nil {
		return
	}
	m.recordsDropped.Add(float64(dropped))
	m.duplicates.Add(float64(duplicates))
}

// Query records one served dataset query.
func (m *Manager) Query(code string, took time.Duration) {
	if m == nil {
		return
	}
	m.queryRequests.WithLabelValues(code).Inc()
	m.queryDuration.Observe(took.Seconds())
}

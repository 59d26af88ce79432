// Package metrics exposes Prometheus collectors for the parking service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parking"

// Metrics owns a registry and the collectors recorded by the service.
type Metrics struct {
	registry *prometheus.Registry

	entries        *prometheus.CounterVec
	exits          *prometheus.CounterVec
	parkedDuration prometheus.Histogram

	importRows          *prometheus.CounterVec
	importBatchDuration prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers every collector, including Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		// outcome: ok or an error kind such as duplicate_active_session.
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Vehicle entry registrations by outcome.",
		}, []string{"outcome"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exits_total",
			Help:      "Vehicle exit registrations by outcome.",
		}, []string{"outcome"}),
		parkedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Length of parking sessions closed by an exit.",
			Buckets:   []float64{300, 900, 1800, 3600, 2 * 3600, 4 * 3600, 8 * 3600, 24 * 3600},
		}),

		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "CSV rows processed by the importer by result.",
		}, []string{"result"}),
		importBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_batch_duration_seconds",
			Help:      "Time spent writing one import batch, retries included.",
			Buckets:   prometheus.DefBuckets,
		}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.entries,
		m.exits,
		m.parkedDuration,
		m.importRows,
		m.importBatchDuration,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveEntry implements application.LifecycleObserver.
func (m *Metrics) ObserveEntry(outcome string) {
	m.entries.WithLabelValues(outcome).Inc()
}

// ObserveExit implements application.LifecycleObserver.
func (m *Metrics) ObserveExit(outcome string, parked time.Duration) {
	m.exits.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.parkedDuration.Observe(parked.Seconds())
	}
}

// ObserveBatch implements ingest.Observer.
func (m *Metrics) ObserveBatch(inserted, rejected int, elapsed time.Duration) {
	m.importRows.WithLabelValues("inserted").Add(float64(inserted))
	m.importBatchDuration.Observe(elapsed.Seconds())
}

// ObserveRowRejected implements ingest.Observer.
func (m *Metrics) ObserveRowRejected(reason string) {
	m.importRows.WithLabelValues("rejected_" + reason).Inc()
}

// ImportRowTotals returns the import row counters keyed by result label.
func (m *Metrics) ImportRowTotals() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	totals := make(map[string]float64)
	for _, family := range families {
		if family.GetName() != namespace+"_import_rows_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "result" {
					totals[label.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	return totals, nil
}

// ObserveHTTPRequest records one served request. Route is the matched path
// template, not the raw URL.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

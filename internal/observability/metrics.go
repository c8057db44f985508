package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the coordinator.
type Metrics struct {
	// Cached lookup metrics.
	CacheLookups       *prometheus.CounterVec // labels: namespace, result={hit,miss}
	CacheWriteFailures *prometheus.CounterVec // labels: namespace

	// External service metrics.
	ExternalRequests *prometheus.CounterVec   // labels: service, outcome={success,error}
	ExternalDuration *prometheus.HistogramVec // labels: service

	// Mutation and push metrics.
	Mutations   *prometheus.CounterVec // labels: entity, action
	Broadcasts  *prometheus.CounterVec // labels: sink, event
	PushClients prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CacheLookups,
		m.CacheWriteFailures,
		m.ExternalRequests,
		m.ExternalDuration,
		m.Mutations,
		m.Broadcasts,
		m.PushClients,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relief",
			Name:      "cache_lookups_total",
			Help:      "Cached lookups by key namespace and result.",
		}, []string{"namespace", "result"}),
		CacheWriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relief",
			Name:      "cache_write_failures_total",
			Help:      "Cache writes that failed and were skipped.",
		}, []string{"namespace"}),
		ExternalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relief",
			Name:      "external_requests_total",
			Help:      "Calls to external lookup services by outcome.",
		}, []string{"service", "outcome"}),
		ExternalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "relief",
			Name:      "external_request_duration_seconds",
			Help:      "External lookup service latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"service"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relief",
			Name:      "mutations_total",
			Help:      "Successful record mutations.",
		}, []string{"entity", "action"}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relief",
			Name:      "broadcasts_total",
			Help:      "Change events handed to a notifier sink.",
		}, []string{"sink", "event"}),
		PushClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relief",
			Name:      "push_clients",
			Help:      "Connected websocket observers.",
		}),
	}
}

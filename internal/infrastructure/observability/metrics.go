package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Queue metrics
	QueuePending        prometheus.Gauge
	OperationsEnqueued  *prometheus.CounterVec
	OperationsReplayed  *prometheus.CounterVec
	OperationsDropped   *prometheus.CounterVec
	ReplayPasses        *prometheus.CounterVec
	ReplayDuration      prometheus.Histogram
	PersistenceErrors   *prometheus.CounterVec
	DeadLetterErrors    prometheus.Counter
	ConnectivityOnline  prometheus.Gauge
	BackendCallDuration *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		QueuePending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_pending_operations",
				Help:      "Number of operations waiting to be replayed",
			},
		),
		OperationsEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_enqueued_total",
				Help:      "Total number of operations enqueued by kind",
			},
			[]string{"kind"},
		),
		OperationsReplayed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_replayed_total",
				Help:      "Total number of replay attempts by kind and result",
			},
			[]string{"kind", "result"},
		),
		OperationsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_dropped_total",
				Help:      "Total number of operations dropped after exhausting retries",
			},
			[]string{"kind"},
		),
		ReplayPasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replay_passes_total",
				Help:      "Total number of replay pass invocations by outcome",
			},
			[]string{"outcome"},
		),
		ReplayDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "replay_pass_duration_seconds",
				Help:      "Duration of completed replay passes in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 15, 30, 60},
			},
		),
		PersistenceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_persistence_errors_total",
				Help:      "Total number of failed queue reads and writes",
			},
			[]string{"op"},
		),
		DeadLetterErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dead_letter_errors_total",
				Help:      "Total number of dropped operations that could not be dead-lettered",
			},
		),
		ConnectivityOnline: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connectivity_online",
				Help:      "Last observed backend reachability (1=online, 0=offline)",
			},
		),
		BackendCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_call_duration_seconds",
				Help:      "Commerce backend call duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"kind", "result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.QueuePending,
		m.OperationsEnqueued,
		m.OperationsReplayed,
		m.OperationsDropped,
		m.ReplayPasses,
		m.ReplayDuration,
		m.PersistenceErrors,
		m.DeadLetterErrors,
		m.ConnectivityOnline,
		m.BackendCallDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CircuitBreakerState,
	)

	return m
}

// NewNopMetrics returns metrics registered against a private registry, for
// components constructed without a shared registry.
func NewNopMetrics() *Metrics {
	return NewMetrics("storesync", prometheus.NewRegistry())
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements the Metrics interface using Prometheus. Each instance owns its registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	transactions        *prometheus.CounterVec
	confirmationLatency *prometheus.HistogramVec
	gasUsed             *prometheus.HistogramVec
	queries             *prometheus.CounterVec
}

var _ Metrics = (*PrometheusMetrics)(nil)

func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),

		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Total number of contract transactions, by kind and result",
			},
			[]string{"kind", "result"},
		),
		confirmationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "confirmation_latency_seconds",
				Help:      "Time from broadcast to inclusion in a block",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"kind"},
		),
		gasUsed: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gas_used",
				Help:      "Gas used by included transactions",
				Buckets:   prometheus.ExponentialBuckets(50_000, 2, 8),
			},
			[]string{"kind"},
		),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of smart contract queries, by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.transactions,
		m.confirmationLatency,
		m.gasUsed,
		m.queries,
	)
	return m
}

func (m *PrometheusMetrics) IncTransactions(kind, result string) {
	m.transactions.WithLabelValues(kind, result).Inc()
}

func (m *PrometheusMetrics) ObserveConfirmationLatency(kind string, latency time.Duration) {
	m.confirmationLatency.WithLabelValues(kind).Observe(latency.Seconds())
}

func (m *PrometheusMetrics) ObserveGasUsed(kind string, gasUsed int64) {
	m.gasUsed.WithLabelValues(kind).Observe(float64(gasUsed))
}

func (m *PrometheusMetrics) IncQueries(result string) {
	m.queries.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry, for tests and for merging with other collectors.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler returns a handler serving the metrics in the Prometheus text format.
func (m *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

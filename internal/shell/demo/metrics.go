package demo

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Invocation outcomes recorded by the metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeInvalid   = "invalid"
	OutcomeThrottled = "throttled"
	OutcomeError     = "error"
)

// Metrics holds the demo backend's Prometheus collectors.
type Metrics struct {
	registry    *prometheus.Registry
	invocations *prometheus.CounterVec
	latency     prometheus.Histogram
}

// NewMetrics creates collectors on a fresh registry.
func NewMetrics(app string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	labels := prometheus.Labels{"app": app}
	m := &Metrics{
		registry: reg,
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "appfleet",
			Subsystem:   "demo",
			Name:        "invocations_total",
			Help:        "Model invocations by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "appfleet",
			Subsystem:   "demo",
			Name:        "invocation_duration_seconds",
			Help:        "Latency of successful model invocations.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
	reg.MustRegister(m.invocations, m.latency)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observe(outcome string, seconds float64) {
	m.invocations.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		m.latency.Observe(seconds)
	}
}

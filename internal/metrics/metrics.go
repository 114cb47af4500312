// Package metrics exposes prometheus instrumentation for the watchdog.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazz-dev/watchdog/internal/probe"
)

// Metrics holds the watchdog's prometheus collectors on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	probesTotal   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	storeErrors   prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchdog",
			Name:      "probes_total",
			Help:      "Probes performed, by target and classified outcome.",
		}, []string{"target", "outcome"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "watchdog",
			Name:      "probe_duration_seconds",
			Help:      "Probe latency for probes that received a response.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target"}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchdog",
			Name:      "store_errors_total",
			Help:      "Failed attempts to persist a probe result.",
		}),
	}
	m.registry.MustRegister(m.probesTotal, m.probeDuration, m.storeErrors)
	return m
}

// Handler returns the /metrics HTTP handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProbe records one classified probe result. Latency is only observed
// for outcomes where it is meaningful.
func (m *Metrics) ObserveProbe(r probe.Result) {
	m.probesTotal.WithLabelValues(r.Target, string(r.Outcome)).Inc()
	if r.Outcome == probe.OutcomeSuccess || r.Outcome == probe.OutcomeFailure {
		m.probeDuration.WithLabelValues(r.Target).Observe(r.Latency.Seconds())
	}
}

// ObserveStoreError records a failed result write.
func (m *Metrics) ObserveStoreError() {
	m.storeErrors.Inc()
}

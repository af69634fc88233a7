package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/cablewatch/internal/monitor"
)

const namespace = "cablewatch"

// Collector records monitor and connection metrics. It satisfies both
// monitor.Observer and connection.Observer.
type Collector struct {
	checks   *prometheus.CounterVec
	attempts prometheus.Gauge
	dials    *prometheus.CounterVec
}

// New creates a Collector and registers its metrics with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "checks_total",
			Help:      "Reconnect checks by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "reconnect_attempts",
			Help:      "Reconnect attempts in the current episode.",
		}),
		dials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "dials_total",
			Help:      "WebSocket dials by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(c.checks, c.attempts, c.dials)
	return c
}

// NewRegistry returns a registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the metrics in reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// ObserveCheck implements monitor.Observer.
func (c *Collector) ObserveCheck(outcome monitor.Outcome, attempts int) {
	c.checks.WithLabelValues(outcome.String()).Inc()
	c.attempts.Set(float64(attempts))
}

// ObserveDial implements connection.Observer.
func (c *Collector) ObserveDial(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	c.dials.WithLabelValues(result).Inc()
}

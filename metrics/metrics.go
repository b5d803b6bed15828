// Package metrics exposes Prometheus collectors for gate decisions and
// generation jobs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's collectors on their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	gateChecks    *prometheus.CounterVec
	gateConsumes  *prometheus.CounterVec
	sessionResets prometheus.Counter
	jobs          *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		gateChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "demogate",
				Subsystem: "gate",
				Name:      "checks_total",
				Help:      "Total number of quota gate checks.",
			},
			[]string{"feature", "tier", "result"},
		),
		gateConsumes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "demogate",
				Subsystem: "gate",
				Name:      "consumes_total",
				Help:      "Total number of demo generations consumed.",
			},
			[]string{"feature"},
		),
		sessionResets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "demogate",
				Subsystem: "sessions",
				Name:      "reset_total",
				Help:      "Total number of demo sessions reset.",
			},
		),
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "demogate",
				Subsystem: "generation",
				Name:      "jobs_total",
				Help:      "Total number of generation jobs by outcome.",
			},
			[]string{"feature", "status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "demogate",
				Subsystem: "generation",
				Name:      "job_duration_seconds",
				Help:      "Duration of generation jobs.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
			[]string{"feature"},
		),
	}
	m.Registry.MustRegister(
		m.gateChecks,
		m.gateConsumes,
		m.sessionResets,
		m.jobs,
		m.jobDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordCheck counts a gate decision.
func (m *Metrics) RecordCheck(feature, tier string, allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.gateChecks.WithLabelValues(feature, tier, result).Inc()
}

// RecordConsume counts a consumed generation.
func (m *Metrics) RecordConsume(feature string) {
	if m == nil {
		return
	}
	m.gateConsumes.WithLabelValues(feature).Inc()
}

// RecordReset counts a session reset.
func (m *Metrics) RecordReset() {
	if m == nil {
		return
	}
	m.sessionResets.Inc()
}

// RecordJob counts a finished generation job and observes its duration.
func (m *Metrics) RecordJob(feature, status string, seconds float64) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(feature, status).Inc()
	m.jobDuration.WithLabelValues(feature).Observe(seconds)
}

// ABOUTME: Prometheus metrics for pipeline stages, saves, and retrievals
// ABOUTME: Metrics live on a private registry so tests and multiple collectors never collide
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric
const Namespace = "mwgen"

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec
	CasesSaved    *prometheus.CounterVec
	Retrievals    *prometheus.CounterVec
}

// NewCollector creates a collector on its own registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				// Model calls take seconds, not milliseconds
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"stage"},
		),
		StageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "stage_failures_total",
				Help:      "Total number of failed pipeline stages",
			},
			[]string{"stage"},
		),
		CasesSaved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "cases_saved_total",
				Help:      "Total number of case writes",
			},
			[]string{"kind"},
		),
		Retrievals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "retrievals_total",
				Help:      "Total number of case retrievals",
			},
			[]string{"strategy", "status"},
		),
	}

	registry.MustRegister(
		c.StageDuration,
		c.StageFailures,
		c.CasesSaved,
		c.Retrievals,
	)

	return c
}

// ObserveStage records one stage run. A nil collector records nothing.
func (c *Collector) ObserveStage(stage string, took time.Duration, err error) {
	if c == nil {
		return
	}
	c.StageDuration.WithLabelValues(stage).Observe(took.Seconds())
	if err != nil {
		c.StageFailures.WithLabelValues(stage).Inc()
	}
}

// CaseSaved counts a write; kind is "insert" or "improvement"
func (c *Collector) CaseSaved(kind string) {
	if c == nil {
		return
	}
	c.CasesSaved.WithLabelValues(kind).Inc()
}

// Retrieved counts one retrieval by strategy and outcome
func (c *Collector) Retrieved(strategy string, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.Retrievals.WithLabelValues(strategy, status).Inc()
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

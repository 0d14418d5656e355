// Package observability records build metrics and exports them in the
// Prometheus text format.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "contractbuild"

// Metrics holds the collectors for one process. Each instance owns its own
// registry so repeated builds in tests never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	builds       *prometheus.CounterVec
	lastBuild    *prometheus.GaugeVec
	artifacts    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "step",
				Name:      "runs_total",
				Help:      "Build steps by kind and final status.",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "step",
				Name:      "duration_seconds",
				Help:      "Build step duration in seconds.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
			},
			[]string{"step", "status"},
		),
		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "build",
				Name:      "runs_total",
				Help:      "Builds by result.",
			},
			[]string{"result"},
		),
		lastBuild: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "build",
				Name:      "last_duration_seconds",
				Help:      "Duration of the most recent build by result.",
			},
			[]string{"result"},
		),
		artifacts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "package",
				Name:      "artifacts_total",
				Help:      "Artifacts written to the output directory.",
			},
			[]string{"artifact"},
		),
	}
	m.registry.MustRegister(m.steps, m.stepDuration, m.builds, m.lastBuild, m.artifacts)
	return m
}

// RecordStep is safe on a nil receiver so callers can leave metrics unset.
func (m *Metrics) RecordStep(step, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(step, status).Inc()
	m.stepDuration.WithLabelValues(step, status).Observe(d.Seconds())
}

func (m *Metrics) RecordBuild(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.builds.WithLabelValues(result).Inc()
	m.lastBuild.WithLabelValues(result).Set(d.Seconds())
}

func (m *Metrics) RecordArtifacts(names ...string) {
	if m == nil {
		return
	}
	for _, name := range names {
		m.artifacts.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the current values in the node_exporter textfile
// collector format. The write goes through a temp file and a rename.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile (%s): %w", path, err)
	}
	return nil
}

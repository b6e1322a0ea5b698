package solve

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the solver's Prometheus collectors.
type Metrics struct {
	Iterations     prometheus.Counter
	Unconverged    prometheus.Gauge
	Photons        prometheus.Counter
	StateqFailures prometheus.Counter
	SweepSeconds   prometheus.Histogram
}

// NewMetrics creates the solver collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lime", Subsystem: "solve", Name: "iterations_total",
			Help: "Completed outer iterations.",
		}),
		Unconverged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lime", Subsystem: "solve", Name: "unconverged_vertices",
			Help: "Internal vertices outside tolerance in the last iteration.",
		}),
		Photons: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lime", Subsystem: "solve", Name: "photons_total",
			Help: "Photons traced through the mesh.",
		}),
		StateqFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lime", Subsystem: "solve", Name: "stateq_failures_total",
			Help: "Rate equation solutions rejected as singular or non-finite.",
		}),
		SweepSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lime", Subsystem: "solve", Name: "sweep_seconds",
			Help:    "Wall time of one outer iteration.",
			Buckets: prometheus.ExponentialBuckets(1e-3, 4, 10),
		}),
	}
	reg.MustRegister(
		m.Iterations, m.Unconverged, m.Photons, m.StateqFailures,
		m.SweepSeconds,
	)
	return m
}

// Package metric defines the Prometheus metrics the simulator exposes.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics contains all fleet-level metrics.
type Metrics struct {
	CyclesTotal      *prometheus.CounterVec
	TransmitTotal    *prometheus.CounterVec
	SamplesGenerated *prometheus.CounterVec
	CycleDuration    *prometheus.HistogramVec
	DevicesActive    prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a Metrics instance registered on a private registry along
// with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sensorfleet",
				Subsystem: "cycles",
				Name:      "total",
				Help:      "Total sensor cycles completed",
			},
			[]string{"device", "result"},
		),
		TransmitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sensorfleet",
				Subsystem: "transmit",
				Name:      "attempts_total",
				Help:      "Total transmit attempts by outcome",
			},
			[]string{"device", "outcome"},
		),
		SamplesGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sensorfleet",
				Subsystem: "audio",
				Name:      "samples_generated_total",
				Help:      "Total raw samples generated",
			},
			[]string{"device"},
		),
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sensorfleet",
				Subsystem: "cycles",
				Name:      "duration_seconds",
				Help:      "Cycle wall time excluding cooldown",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"device"},
		),
		DevicesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sensorfleet",
				Subsystem: "fleet",
				Name:      "devices_active",
				Help:      "Devices currently running their cycle loop",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.CyclesTotal,
		m.TransmitTotal,
		m.SamplesGenerated,
		m.CycleDuration,
		m.DevicesActive,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying Prometheus registry for the /metrics
// handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCycle records the metrics for one completed cycle.
func (m *Metrics) ObserveCycle(device string, transmitted bool, rawSamples int, seconds float64) {
	result := "transmitted"
	if !transmitted {
		result = "failed"
	}
	m.CyclesTotal.WithLabelValues(device, result).Inc()
	m.TransmitTotal.WithLabelValues(device, result).Inc()
	m.SamplesGenerated.WithLabelValues(device).Add(float64(rawSamples))
	m.CycleDuration.WithLabelValues(device).Observe(seconds)
}

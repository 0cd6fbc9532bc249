package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCycle(t *testing.T) {
	m := New()

	m.ObserveCycle("sensor_001", true, 400000, 0.2)
	m.ObserveCycle("sensor_001", true, 400000, 0.3)
	m.ObserveCycle("sensor_001", false, 400000, 0.1)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues("sensor_001", "transmitted")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues("sensor_001", "failed")), 0.001)
	assert.InDelta(t, 1200000.0, testutil.ToFloat64(m.SamplesGenerated.WithLabelValues("sensor_001")), 0.001)
}

func TestDevicesActiveGauge(t *testing.T) {
	m := New()

	m.DevicesActive.Inc()
	m.DevicesActive.Inc()
	m.DevicesActive.Dec()

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.DevicesActive), 0.001)
}

func TestRegistryGathersFleetMetrics(t *testing.T) {
	m := New()
	m.ObserveCycle("sensor_001", true, 100, 0.1)

	families, err := m.Registry().Gather()
	assert.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["sensorfleet_cycles_total"])
	assert.True(t, names["sensorfleet_transmit_attempts_total"])
	assert.True(t, names["sensorfleet_cycles_duration_seconds"])
	assert.True(t, names["sensorfleet_fleet_devices_active"])
}

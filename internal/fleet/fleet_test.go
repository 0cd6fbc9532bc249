package fleet

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/omnisent/sensorfleet/internal/config"
	"github.com/omnisent/sensorfleet/internal/console"
	"github.com/omnisent/sensorfleet/internal/cyclelog"
	"github.com/omnisent/sensorfleet/internal/metric"
	"github.com/omnisent/sensorfleet/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFleetConfig(t *testing.T, deviceIDs []string, cycles int) *config.Config {
	t.Helper()
	cfg := config.New(filepath.Join(t.TempDir(), "config.json"))
	cfg.Fleet.Strategy = types.StrategySequential
	cfg.Fleet.SuccessRate = 1.0
	for _, id := range deviceIDs {
		cfg.Fleet.Devices = append(cfg.Fleet.Devices, config.DeviceConfig{
			ID:          id,
			SampleRate:  400,
			BitDepth:    8,
			DurationSec: 1,
			CooldownMs:  0,
			Cycles:      cycles,
		})
	}
	return cfg
}

func TestRunCompletesAllDevices(t *testing.T) {
	cfg := testFleetConfig(t, []string{"sensor_001", "sensor_002"}, 2)

	logger, err := cyclelog.NewLogger(filepath.Join(t.TempDir(), "events.jsonl"))
	require.NoError(t, err)
	defer logger.Close()

	metrics := metric.New()
	flt := New(cfg, Options{
		Console:  console.New(&bytes.Buffer{}),
		CycleLog: logger,
		Metrics:  metrics,
	})

	require.NoError(t, flt.Run(context.Background()))

	status := flt.Status()
	assert.Equal(t, types.FleetDone, status.State)
	assert.Equal(t, 2, status.DeviceCount)
	assert.Equal(t, 4, status.Cycles)
	assert.Equal(t, 0, status.Failures)

	statuses := flt.DeviceStatuses()
	require.Len(t, statuses, 2)
	for id, ds := range statuses {
		assert.True(t, ds.Done(), "device %s", id)
		assert.Equal(t, 2, ds.Transmitted, "device %s", id)
	}

	// Lifecycle and cycle events landed in the log
	events, _, err := cyclelog.ReadLast(logger.Path(), 50, 0, "")
	require.NoError(t, err)
	counts := make(map[cyclelog.EventType]int)
	for _, ev := range events {
		counts[ev.Type]++
	}
	assert.Equal(t, 2, counts[cyclelog.DeviceStarted])
	assert.Equal(t, 2, counts[cyclelog.DeviceDone])
	assert.Equal(t, 4, counts[cyclelog.CycleCompleted])
}

func TestRunFansOutCycleEvents(t *testing.T) {
	cfg := testFleetConfig(t, []string{"sensor_001"}, 3)

	flt := New(cfg, Options{Console: console.New(&bytes.Buffer{})})

	var mu sync.Mutex
	var events []types.WSCycleEvent
	flt.SetEventFunc(func(ev types.WSCycleEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	require.NoError(t, flt.Run(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, "cycle", ev.Type)
		assert.Equal(t, "sensor_001", ev.DeviceID)
		assert.Equal(t, i+1, ev.Cycle)
		assert.True(t, ev.Outcome.Transmitted)
	}
}

func TestRunCancellationStopsDevices(t *testing.T) {
	cfg := testFleetConfig(t, []string{"sensor_001", "sensor_002"}, 100)
	for i := range cfg.Fleet.Devices {
		cfg.Fleet.Devices[i].CooldownMs = 60000
	}

	flt := New(cfg, Options{Console: console.New(&bytes.Buffer{})})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- flt.Run(ctx) }()

	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("fleet did not stop after cancellation")
	}

	status := flt.Status()
	assert.Less(t, status.Cycles, 200)
}

func TestRunRecordsMetrics(t *testing.T) {
	cfg := testFleetConfig(t, []string{"sensor_001"}, 2)

	metrics := metric.New()
	flt := New(cfg, Options{
		Console: console.New(&bytes.Buffer{}),
		Metrics: metrics,
	})

	require.NoError(t, flt.Run(context.Background()))

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)

	found := false
	for _, f := range families {
		if f.GetName() == "sensorfleet_cycles_total" {
			found = true
			total := 0.0
			for _, m := range f.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			assert.InDelta(t, 2.0, total, 0.001)
		}
	}
	assert.True(t, found, "sensorfleet_cycles_total not gathered")
}

package cyclelog

import (
	"path/filepath"
	"testing"

	"github.com/omnisent/sensorfleet/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := NewLogger(filepath.Join(t.TempDir(), "events.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLogAndReadBack(t *testing.T) {
	l := newTestLogger(t)

	require.NoError(t, l.LogDevice(DeviceStarted, "sensor_001", "device started"))
	require.NoError(t, l.LogCycle(CycleCompleted, "sensor_001", &CycleDetails{Cycle: 1, DurationMs: 12}))

	events, hasMore, err := ReadLast(l.Path(), 10, 0, "")
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, events, 2)

	// Newest first
	assert.Equal(t, CycleCompleted, events[0].Type)
	assert.Equal(t, DeviceStarted, events[1].Type)
	assert.Equal(t, "sensor_001", events[0].DeviceID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestLogOutcomeMapsErrorToEventType(t *testing.T) {
	l := newTestLogger(t)

	require.NoError(t, l.LogOutcome("sensor_001", 1, types.CycleOutcome{Attempted: true, Transmitted: true}, 5))
	require.NoError(t, l.LogOutcome("sensor_001", 2, types.CycleOutcome{Attempted: true, Error: types.ErrTransmissionFailure}, 5))

	events, _, err := ReadLast(l.Path(), 10, 0, "")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, CycleFailed, events[0].Type)
	assert.Equal(t, CycleCompleted, events[1].Type)
}

func TestReadLastDeviceFilter(t *testing.T) {
	l := newTestLogger(t)

	require.NoError(t, l.LogDevice(DeviceStarted, "sensor_001", ""))
	require.NoError(t, l.LogDevice(DeviceStarted, "sensor_002", ""))
	require.NoError(t, l.LogDevice(DeviceDone, "sensor_001", ""))

	events, _, err := ReadLast(l.Path(), 10, 0, "sensor_001")
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, "sensor_001", ev.DeviceID)
	}
}

func TestReadLastPagination(t *testing.T) {
	l := newTestLogger(t)
	for range 5 {
		require.NoError(t, l.LogDevice(DeviceStarted, "sensor_001", ""))
	}

	events, hasMore, err := ReadLast(l.Path(), 2, 0, "")
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.True(t, hasMore)

	events, hasMore, err = ReadLast(l.Path(), 2, 4, "")
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.False(t, hasMore)
}

func TestReadLastMissingFile(t *testing.T) {
	events, hasMore, err := ReadLast(filepath.Join(t.TempDir(), "absent.jsonl"), 10, 0, "")
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.False(t, hasMore)
}

func TestReadLastCapsLimit(t *testing.T) {
	l := newTestLogger(t)
	require.NoError(t, l.LogDevice(DeviceStarted, "sensor_001", ""))

	events, _, err := ReadLast(l.Path(), MaxReadLimit+100, 0, "")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

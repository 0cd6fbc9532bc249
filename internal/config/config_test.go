package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/omnisent/sensorfleet/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) *Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return New(path)
}

func TestLoadMissingFileCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := New(path)

	require.NoError(t, cfg.Load())

	// A default config file was written
	_, err := os.Stat(path)
	require.NoError(t, err)

	snap := cfg.Snapshot()
	assert.Equal(t, DefaultFleetName, snap.FleetName)
	assert.Equal(t, types.StrategyStaged, snap.Strategy)
	assert.Equal(t, types.DefaultSuccessRate, snap.SuccessRate)
	assert.Equal(t, DefaultWebPort, snap.WebPort)

	require.Len(t, snap.Devices, 1)
	dev := snap.Devices[0]
	assert.Equal(t, "sensor_001", dev.ID)
	assert.Equal(t, types.DefaultSampleRate, dev.SampleRate)
	assert.Equal(t, types.DefaultBitDepth, dev.BitDepth)
	assert.Equal(t, types.DefaultDurationSec, dev.DurationSec)
	assert.Equal(t, types.DefaultCycles, dev.Cycles)
	assert.Equal(t, types.DefaultCooldown, dev.Cooldown())
}

func TestLoadAppliesDeviceDefaults(t *testing.T) {
	cfg := writeConfig(t, `{
		"fleet": {
			"strategy": "parallel",
			"devices": [
				{"sample_rate": 1000, "duration_sec": 1}
			]
		}
	}`)

	require.NoError(t, cfg.Load())

	devices := cfg.Devices()
	require.Len(t, devices, 1)
	assert.Contains(t, devices[0].ID, "sensor-")
	assert.Equal(t, 1000, devices[0].SampleRate)
	assert.Equal(t, types.DefaultBitDepth, devices[0].BitDepth)
	assert.Equal(t, types.DefaultCycles, devices[0].Cycles)
	assert.Equal(t, types.StrategyParallel, cfg.Strategy())
}

func TestLoadPreservesExplicitZeroRate(t *testing.T) {
	cfg := writeConfig(t, `{
		"fleet": {
			"devices": [
				{"id": "dead_sensor", "sample_rate": 0, "duration_sec": 0, "cycles": 2}
			]
		}
	}`)

	require.NoError(t, cfg.Load())

	devices := cfg.Devices()
	require.Len(t, devices, 1)
	assert.Equal(t, 0, devices[0].SampleRate)
	assert.Equal(t, 0, devices[0].DurationSec)
	assert.Equal(t, 2, devices[0].Cycles)
}

func TestLoadRejectsInvalidStrategy(t *testing.T) {
	cfg := writeConfig(t, `{"fleet": {"strategy": "warp"}}`)

	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid strategy")
}

func TestLoadRejectsDuplicateDeviceIDs(t *testing.T) {
	cfg := writeConfig(t, `{
		"fleet": {
			"devices": [
				{"id": "sensor_001"},
				{"id": "sensor_001"}
			]
		}
	}`)

	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate device id")
}

func TestLoadRejectsOutOfRangeSuccessRate(t *testing.T) {
	cfg := writeConfig(t, `{"fleet": {"success_rate": 1.5}}`)

	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "success_rate")
}

func TestLoadRejectsBadArchivePath(t *testing.T) {
	cfg := writeConfig(t, `{
		"archive": {"enabled": true, "local_path": "../escape"}
	}`)

	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local_path")
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	cfg := writeConfig(t, `{not json`)
	require.Error(t, cfg.Load())
}

func TestSnapshotIsACopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := New(path)
	require.NoError(t, cfg.Load())

	snap := cfg.Snapshot()
	snap.Devices[0].ID = "mutated"

	assert.Equal(t, "sensor_001", cfg.Devices()[0].ID)
}

func TestDeviceCooldown(t *testing.T) {
	d := DeviceConfig{CooldownMs: 2500}
	assert.Equal(t, 2500*time.Millisecond, d.Cooldown())
}

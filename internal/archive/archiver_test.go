package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/omnisent/sensorfleet/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalArchiver(t *testing.T) (*Archiver, string) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.New(filepath.Join(t.TempDir(), "config.json"))
	cfg.Archive.Enabled = true
	cfg.Archive.StorageMode = config.StorageLocal
	cfg.Archive.LocalPath = dir
	cfg.Archive.RetentionDays = 30

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, dir
}

func TestAppendWritesDailyFile(t *testing.T) {
	a, dir := newLocalArchiver(t)

	encoded := `{ "sensor_id": "sensor_001", "timestamp": 1709802342, "audio_data": [1, 2] }`
	require.NoError(t, a.Append("sensor_001", 1, encoded, true))
	require.NoError(t, a.Append("sensor_001", 2, encoded, false))

	path := filepath.Join(dir, fmt.Sprintf("sensor_001-%s.jsonl", time.Now().Format(time.DateOnly)))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var first Record
	require.NoError(t, json.Unmarshal(firstLine(data), &first))
	assert.Equal(t, "sensor_001", first.Device)
	assert.Equal(t, 1, first.Cycle)
	assert.True(t, first.Transmitted)
	assert.Equal(t, encoded, first.Payload)
}

func TestAppendSeparatesDevices(t *testing.T) {
	a, dir := newLocalArchiver(t)

	require.NoError(t, a.Append("sensor_001", 1, "payload-a", true))
	require.NoError(t, a.Append("sensor_002", 1, "payload-b", true))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCleanupRemovesExpiredFiles(t *testing.T) {
	a, dir := newLocalArchiver(t)

	old := filepath.Join(dir, "sensor_001-2020-01-01.jsonl")
	fresh := filepath.Join(dir, fmt.Sprintf("sensor_001-%s.jsonl", time.Now().Format(time.DateOnly)))
	unrelated := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, unrelated} {
		require.NoError(t, os.WriteFile(p, []byte("{}\n"), 0o644))
	}

	require.NoError(t, a.Cleanup())

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, unrelated)
}

func TestCleanupMissingDirIsNoError(t *testing.T) {
	cfg := config.New(filepath.Join(t.TempDir(), "config.json"))
	cfg.Archive.Enabled = true
	cfg.Archive.StorageMode = config.StorageLocal
	cfg.Archive.LocalPath = filepath.Join(t.TempDir(), "subdir")

	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, os.RemoveAll(cfg.Archive.LocalPath))
	assert.NoError(t, a.Cleanup())
}

func firstLine(data []byte) []byte {
	for i, b := range data {
		if b == '\n' {
			return data[:i]
		}
	}
	return data
}

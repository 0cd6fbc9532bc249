package util

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedDistinctForSameIdentity(t *testing.T) {
	seen := make(map[int64]bool)
	for range 1000 {
		s := Seed("sensor_001")
		require.False(t, seen[s], "seed repeated within a run")
		seen[s] = true
	}
}

func TestSeedDistinctAcrossIdentities(t *testing.T) {
	assert.NotEqual(t, Seed("sensor_001"), Seed("sensor_002"))
}

func TestBackoffDoublesUpToMax(t *testing.T) {
	b := NewBackoff(1*time.Second, 5*time.Second)

	assert.Equal(t, 1*time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 4*time.Second, b.Next())
	assert.Equal(t, 5*time.Second, b.Next())
	assert.Equal(t, 5*time.Second, b.Next())

	b.Reset()
	assert.Equal(t, 1*time.Second, b.Current())
}

func TestWrapError(t *testing.T) {
	base := errors.New("boom")
	wrapped := WrapError("open file", base)

	require.Error(t, wrapped)
	assert.Equal(t, "failed to open file: boom", wrapped.Error())
	assert.ErrorIs(t, wrapped, base)

	assert.NoError(t, WrapError("open file", nil))
}

func TestExtractDateFromFilename(t *testing.T) {
	date, ok := ExtractDateFromFilename("sensor_001-2024-03-07.jsonl")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), date)

	_, ok = ExtractDateFromFilename("no-date-here.jsonl")
	assert.False(t, ok)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", FormatDuration(45_000))
	assert.Equal(t, "2m 34s", FormatDuration(154_000))
	assert.Equal(t, "1h 23m", FormatDuration(4_980_000))
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, ValidatePath("field", "/var/log/fleet"))
	assert.Error(t, ValidatePath("field", ""))
	assert.Error(t, ValidatePath("field", "../escape"))
}

func TestIsConfigured(t *testing.T) {
	assert.True(t, IsConfigured("a", "b"))
	assert.False(t, IsConfigured("a", ""))
}

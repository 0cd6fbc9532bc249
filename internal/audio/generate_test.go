package audio

import (
	"testing"

	"github.com/omnisent/sensorfleet/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLength(t *testing.T) {
	g := NewGenerator(1, 1)
	block := g.Generate(4000, 16, 2)
	assert.Len(t, block, 8000)
}

func TestGenerateAmplitudeRange(t *testing.T) {
	for _, bitDepth := range []int{1, 8, 16, 24} {
		g := NewGenerator(42, 1)
		block := g.Generate(10000, bitDepth, 1)

		bound := int(AmplitudeRange(bitDepth))
		for _, v := range block {
			require.GreaterOrEqual(t, v, -bound, "bit depth %d", bitDepth)
			require.Less(t, v, bound, "bit depth %d", bitDepth)
		}
	}
}

func TestGenerateDegenerateInputs(t *testing.T) {
	g := NewGenerator(1, 1)

	assert.Empty(t, g.Generate(0, 16, 1))
	assert.Empty(t, g.Generate(-100, 16, 1))
	assert.Empty(t, g.Generate(4000, 16, 0))
	assert.Empty(t, g.Generate(4000, 16, -1))
}

func TestGenerateOutOfRangeBitDepthIsClamped(t *testing.T) {
	g := NewGenerator(1, 1)

	// Must not panic; values clamp to the supported range
	block := g.Generate(1000, 0, 1)
	bound := int(AmplitudeRange(types.MinBitDepth))
	for _, v := range block {
		require.GreaterOrEqual(t, v, -bound)
		require.Less(t, v, bound)
	}

	block = g.Generate(1000, 99, 1)
	bound = int(AmplitudeRange(types.MaxBitDepth))
	for _, v := range block {
		require.GreaterOrEqual(t, v, -bound)
		require.Less(t, v, bound)
	}
}

func TestGenerateSequentialIsDeterministicPerSeed(t *testing.T) {
	a := NewGenerator(7, 1).Generate(5000, 16, 1)
	b := NewGenerator(7, 1).Generate(5000, 16, 1)
	assert.Equal(t, a, b)

	c := NewGenerator(8, 1).Generate(5000, 16, 1)
	assert.NotEqual(t, a, c)
}

func TestGenerateParallelFillsEverySlot(t *testing.T) {
	g := NewGenerator(3, 8)
	// With a 1-bit depth every sample is -1 or 0, so an unfilled slot is
	// indistinguishable from a legitimate zero. Use a wider depth and
	// check statistically impossible all-zero runs instead.
	block := g.Generate(400000, 24, 1)
	require.Len(t, block, 400000)

	zeroRun := 0
	maxZeroRun := 0
	for _, v := range block {
		if v == 0 {
			zeroRun++
			maxZeroRun = max(maxZeroRun, zeroRun)
		} else {
			zeroRun = 0
		}
	}
	assert.Less(t, maxZeroRun, 100, "long zero run suggests an unfilled worker partition")
}

func TestClampBitDepth(t *testing.T) {
	assert.Equal(t, types.MinBitDepth, ClampBitDepth(-5))
	assert.Equal(t, types.MinBitDepth, ClampBitDepth(0))
	assert.Equal(t, 16, ClampBitDepth(16))
	assert.Equal(t, types.MaxBitDepth, ClampBitDepth(64))
}

func TestAmplitudeRange(t *testing.T) {
	assert.Equal(t, int64(1), AmplitudeRange(1))
	assert.Equal(t, int64(128), AmplitudeRange(8))
	assert.Equal(t, int64(32768), AmplitudeRange(16))
	assert.Equal(t, int64(8388608), AmplitudeRange(24))
}

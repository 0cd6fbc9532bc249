package payload

import (
	"strings"
	"testing"
	"time"

	"github.com/omnisent/sensorfleet/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var encodeTime = time.Date(2024, 3, 7, 9, 5, 42, 0, time.UTC)

func TestEncodeWireFormat(t *testing.T) {
	p := New("sensor_001", []int{12, -7, 0}, encodeTime)

	want := `{ "sensor_id": "sensor_001", "timestamp": 1709802342, "audio_data": [12, -7, 0] }`
	assert.Equal(t, want, p.Encode())
}

func TestEncodeEmptyBlock(t *testing.T) {
	p := New("sensor_001", nil, encodeTime)

	want := `{ "sensor_id": "sensor_001", "timestamp": 1709802342, "audio_data": [] }`
	assert.Equal(t, want, p.Encode())
}

func TestNewBoundsSamplePrefix(t *testing.T) {
	block := make([]int, 250)
	for i := range block {
		block[i] = i
	}

	p := New("sensor_001", block, encodeTime)
	require.Len(t, p.AudioData, types.MaxPayloadSamples)
	for i, v := range p.AudioData {
		assert.Equal(t, i, v)
	}
}

func TestNewCopiesBlock(t *testing.T) {
	block := []int{1, 2, 3}
	p := New("sensor_001", block, encodeTime)

	block[0] = 99
	assert.Equal(t, 1, p.AudioData[0])
}

func TestPreviewTruncatesLongPayloads(t *testing.T) {
	encoded := New("sensor_001", make([]int, types.MaxPayloadSamples), encodeTime).Encode()
	require.Greater(t, len(encoded), types.PayloadPreviewChars)

	preview := Preview(encoded)
	assert.Len(t, preview, types.PayloadPreviewChars+len(" ..."))
	assert.Equal(t, encoded[:types.PayloadPreviewChars], strings.TrimSuffix(preview, " ..."))
}

func TestPreviewShortPayloadKeptWhole(t *testing.T) {
	assert.Equal(t, "short ...", Preview("short"))
}

// Package payload builds the JSON-like uplink payload for a sensor cycle.
package payload

import (
	"strconv"
	"strings"
	"time"

	"github.com/omnisent/sensorfleet/internal/types"
)

// Payload is the structured record a device uplinks each cycle. AudioData
// holds at most types.MaxPayloadSamples entries, a prefix of the decimated
// block in original order.
type Payload struct {
	SensorID  string `json:"sensor_id"`  // Device identity
	Timestamp int64  `json:"timestamp"`  // Seconds since epoch at encode time
	AudioData []int  `json:"audio_data"` // Bounded sample prefix
}

// New builds a Payload from a decimated block. The block itself is not
// retained; the bounded prefix is copied out.
func New(sensorID string, block []int, now time.Time) Payload {
	n := min(types.MaxPayloadSamples, len(block))
	data := make([]int, n)
	copy(data, block[:n])

	return Payload{
		SensorID:  sensorID,
		Timestamp: now.Unix(),
		AudioData: data,
	}
}

// Encode renders the payload as the wire text:
//
//	{ "sensor_id": "<id>", "timestamp": <unix>, "audio_data": [a, b, ...] }
//
// Sample values are comma-space separated with no trailing comma. Encode is
// deterministic for a given payload.
func (p Payload) Encode() string {
	var b strings.Builder
	b.Grow(64 + len(p.AudioData)*10)

	b.WriteString(`{ "sensor_id": "`)
	b.WriteString(p.SensorID)
	b.WriteString(`", "timestamp": `)
	b.WriteString(strconv.FormatInt(p.Timestamp, 10))
	b.WriteString(`, "audio_data": [`)

	for i, v := range p.AudioData {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(v))
	}

	b.WriteString("] }")
	return b.String()
}

// Preview returns the first types.PayloadPreviewChars characters of an
// encoded payload followed by an ellipsis marker, matching what the
// transmit stage echoes to the console on success.
func Preview(encoded string) string {
	if len(encoded) > types.PayloadPreviewChars {
		encoded = encoded[:types.PayloadPreviewChars]
	}
	return encoded + " ..."
}

package console

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLogFormat(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2024, 3, 7, 9, 5, 42, 0, time.UTC)
	l := NewWithClock(&buf, fixedClock(at))

	l.Log("Wake: Generating dummy audio data...")

	assert.Equal(t, "[2024-03-07 09:05:42] Wake: Generating dummy audio data...\n", buf.String())
}

func TestPrintHasNoTimestamp(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Print(`{ "sensor_id": "sensor_001" } ...`)

	assert.Equal(t, `{ "sensor_id": "sensor_001" } ...`+"\n", buf.String())
}

func TestNowUsesInjectedClock(t *testing.T) {
	at := time.Date(2024, 3, 7, 9, 5, 42, 0, time.UTC)
	l := NewWithClock(nil, fixedClock(at))

	require.Equal(t, at, l.Now())
}

func TestConcurrentLinesStayIntact(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2024, 3, 7, 9, 5, 42, 0, time.UTC)
	l := NewWithClock(&buf, fixedClock(at))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Log("line")
		}()
	}
	wg.Wait()

	lines := bytes.Split(bytes.TrimSuffix(buf.Bytes(), []byte("\n")), []byte("\n"))
	require.Len(t, lines, 20)
	for _, line := range lines {
		assert.Equal(t, "[2024-03-07 09:05:42] line", string(line))
	}
}

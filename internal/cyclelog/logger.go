// Package cyclelog provides unified event logging for the fleet. It
// captures cycle events (started, transmitted, failed, completed) and
// device lifecycle events in a single JSON lines file.
package cyclelog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/omnisent/sensorfleet/internal/types"
	"github.com/omnisent/sensorfleet/internal/util"
)

// EventType represents the type of event.
type EventType string

// Cycle event types.
const (
	CycleFailed    EventType = "cycle_failed"
	CycleCompleted EventType = "cycle_completed"
)

// Device lifecycle event types.
const (
	DeviceStarted EventType = "device_started"
	DeviceDone    EventType = "device_done"
	DeviceStopped EventType = "device_stopped"
)

// Event represents a single log entry with type-specific details.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Type      EventType `json:"type"`
	DeviceID  string    `json:"device_id,omitempty"`
	Message   string    `json:"msg,omitempty"`
	Details   any       `json:"details,omitempty"`
}

// CycleDetails contains cycle-specific event details.
type CycleDetails struct {
	Cycle          int    `json:"cycle,omitempty"`           // 1-based cycle index
	RawSamples     int    `json:"raw_samples,omitempty"`     // Generated block length
	Decimated      int    `json:"decimated,omitempty"`       // Decimated block length
	PayloadPreview string `json:"payload_preview,omitempty"` // Bounded payload excerpt
	DurationMs     int64  `json:"duration_ms,omitempty"`     // Cycle wall time, cooldown excluded
	Error          string `json:"error,omitempty"`           // types.ErrTransmissionFailure on failure
}

// Logger writes events to a JSON lines file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
	encoder  *json.Encoder
}

// NewLogger creates a new event logger at the specified path.
func NewLogger(filePath string) (*Logger, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, util.WrapError("create log directory", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, util.WrapError("open log file", err)
	}

	return &Logger{
		filePath: filePath,
		file:     file,
		encoder:  json.NewEncoder(file),
	}, nil
}

// Log writes an event to the log file.
func (l *Logger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	return l.encoder.Encode(event)
}

// LogCycle logs a cycle event with its details.
func (l *Logger) LogCycle(eventType EventType, deviceID string, details *CycleDetails) error {
	return l.Log(&Event{
		Timestamp: time.Now(),
		Type:      eventType,
		DeviceID:  deviceID,
		Details:   details,
	})
}

// LogOutcome logs the completion of a cycle from its outcome record.
func (l *Logger) LogOutcome(deviceID string, cycle int, outcome types.CycleOutcome, durationMs int64) error {
	eventType := CycleCompleted
	if outcome.Error != "" {
		eventType = CycleFailed
	}
	return l.LogCycle(eventType, deviceID, &CycleDetails{
		Cycle:      cycle,
		DurationMs: durationMs,
		Error:      outcome.Error,
	})
}

// LogDevice logs a device lifecycle event.
func (l *Logger) LogDevice(eventType EventType, deviceID, message string) error {
	return l.Log(&Event{
		Timestamp: time.Now(),
		Type:      eventType,
		DeviceID:  deviceID,
		Message:   message,
	})
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Path returns the path to the log file.
func (l *Logger) Path() string {
	return l.filePath
}

// MaxReadLimit is the maximum number of events that can be read at once.
// This prevents excessive memory allocation on large log files.
const MaxReadLimit = 500

// ReadLast reads events from the log file with pagination support.
// Returns up to n events starting from offset, optionally filtered to a
// single device. Events are returned newest first.
func ReadLast(filePath string, n, offset int, deviceID string) ([]Event, bool, error) {
	if n > MaxReadLimit {
		n = MaxReadLimit
	}
	if n <= 0 {
		return []Event{}, false, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, false, nil
		}
		return nil, false, err
	}
	defer file.Close() //nolint:errcheck // Read-only operation, close error not critical

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}

	events := make([]Event, 0, n)
	skipped := 0
	hasMore := false
	for i := len(lines) - 1; i >= 0; i-- {
		var event Event
		if err := json.Unmarshal([]byte(lines[i]), &event); err != nil {
			continue // Skip malformed lines
		}

		if deviceID != "" && event.DeviceID != deviceID {
			continue
		}

		if skipped < offset {
			skipped++
			continue
		}

		if len(events) >= n {
			hasMore = true
			break
		}
		events = append(events, event)
	}

	return events, hasMore, nil
}

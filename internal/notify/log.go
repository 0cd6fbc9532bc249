package notify

import (
	"encoding/json"
	"os"

	"github.com/omnisent/sensorfleet/internal/util"
)

// LogEntry is one JSONL record in the notification log file.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Device    string `json:"device"`
	Streak    int    `json:"streak,omitempty"`
}

// LogFailureStreak appends a failure streak record to the log file.
func LogFailureStreak(path, deviceID string, streak int) error {
	return appendLogEntry(path, LogEntry{
		Timestamp: timestampUTC(),
		Event:     "uplink_failing",
		Device:    deviceID,
		Streak:    streak,
	})
}

// LogRecovery appends a recovery record to the log file.
func LogRecovery(path, deviceID string) error {
	return appendLogEntry(path, LogEntry{
		Timestamp: timestampUTC(),
		Event:     "uplink_recovered",
		Device:    deviceID,
	})
}

func appendLogEntry(path string, entry LogEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return util.WrapError("marshal log entry", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return util.WrapError("open notification log", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return util.WrapError("write notification log", err)
	}

	return nil
}

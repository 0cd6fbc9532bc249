package util

import "log/slog"

// LogNotifyResult runs a notification delivery function and records its
// outcome. Deliveries run on their own goroutines, so failures surface
// here instead of in a return value nobody reads.
func LogNotifyResult(fn func() error, notifyType string) {
	if err := fn(); err != nil {
		slog.Error("notification failed", "type", notifyType, "error", err)
		return
	}
	slog.Info("notification sent", "type", notifyType)
}

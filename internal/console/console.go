// Package console implements the device console sink. Every stage of a
// sensor cycle emits one line of the form "[YYYY-MM-DD HH:MM:SS] <message>"
// stamped with the wall-clock time of emission. The writer and clock are
// injectable so tests can pin time and capture output.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// timeLayout is the bracketed timestamp layout used on every line.
const timeLayout = "2006-01-02 15:04:05"

// Logger writes timestamped device log lines to a single destination.
// It is safe for concurrent use; concurrent devices may interleave lines
// but never corrupt them.
type Logger struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// New returns a Logger writing to out. A nil out defaults to stdout.
func New(out io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{out: out, now: time.Now}
}

// NewWithClock returns a Logger with a fixed clock source, for tests.
func NewWithClock(out io.Writer, now func() time.Time) *Logger {
	l := New(out)
	l.now = now
	return l
}

// Log emits one timestamped line.
func (l *Logger) Log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] %s\n", l.now().Format(timeLayout), msg)
}

// Print emits raw text followed by a newline, without a timestamp.
// The transmit stage uses this for the payload preview.
func (l *Logger) Print(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, text)
}

// Now returns the logger's current wall-clock time. Payload encoding uses
// the same clock so timestamps in payloads and log lines agree in tests.
func (l *Logger) Now() time.Time {
	return l.now()
}

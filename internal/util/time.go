package util

import (
	"fmt"
	"regexp"
	"time"
)

// DatePattern matches the YYYY-MM-DD stamp embedded in archive filenames.
var DatePattern = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)

// ExtractDateFromFilename pulls the YYYY-MM-DD date out of a filename.
// The second return value is false when no parseable date is present.
func ExtractDateFromFilename(filename string) (time.Time, bool) {
	m := DatePattern.FindStringSubmatch(filename)
	if len(m) < 2 {
		return time.Time{}, false
	}
	date, err := time.Parse(time.DateOnly, m[1])
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// humanTimeFormat is the layout used for operator-facing timestamps.
const humanTimeFormat = "2 Jan 2006 15:04 MST"

// HumanTime returns the current local time formatted for notifications.
func HumanTime() string {
	return time.Now().Format(humanTimeFormat)
}

// FormatHumanTime converts an RFC3339 timestamp into local human-readable
// form. Unparseable input is returned as-is.
func FormatHumanTime(rfc3339 string) string {
	if rfc3339 == "" || rfc3339 == "unknown" {
		return "unknown"
	}
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return t.Local().Format(humanTimeFormat)
}

// FormatDuration renders a millisecond count as "45s", "2m 34s" or
// "1h 23m", dropping precision as the duration grows.
func FormatDuration(ms int64) string {
	secs := ms / 1000
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	if secs < 3600 {
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	}
	return fmt.Sprintf("%dh %dm", secs/3600, (secs%3600)/60)
}

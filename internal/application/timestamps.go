package application

import (
	"fmt"
	"strings"
	"time"
)

// localTimestampLayouts accept ISO-8601 date-times without an offset. They are
// interpreted as UTC.
var localTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseTimestamp parses an RFC 3339 timestamp or an ISO-8601 local date-time.
// Date-only values are rejected.
func ParseTimestamp(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range localTimestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}

	if _, err := time.Parse(time.DateOnly, value); err == nil {
		return time.Time{}, fmt.Errorf("timestamp %q has no time of day", raw)
	}
	return time.Time{}, fmt.Errorf("timestamp %q is not ISO-8601", raw)
}

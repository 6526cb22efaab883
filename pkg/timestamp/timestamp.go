// Package timestamp formats and parses the ISO-8601 timestamps carried in
// service records.
//
// Registry timestamps are local wall-clock strings with microsecond
// precision and no zone suffix, e.g. "2025-11-30T12:00:00.000000". This is
// the shape the prediction services and the frontend already exchange.
// Parse also accepts RFC3339 (with or without fractional seconds) so records
// produced by other tooling round-trip.
//
// Usage Examples:
//
//	// Format the current time for a record
//	ts := timestamp.FormatISO(time.Now())
//
//	// Parse a heartbeat back into time.Time
//	t, err := timestamp.ParseISO(ts)
package timestamp

import (
	"fmt"
	"time"
)

// ISOLayout is the canonical layout for registry timestamps.
const ISOLayout = "2006-01-02T15:04:05.000000"

var parseLayouts = []string{
	ISOLayout,
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
}

// FormatISO formats t in ISOLayout. Returns empty string for the zero time.
func FormatISO(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(ISOLayout)
}

// ParseISO parses a registry timestamp. Zone-less values are interpreted in
// the local zone, matching FormatISO.
func ParseISO(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp: empty value")
	}
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp: unrecognised format %q", s)
}

// Ptr returns a pointer to the formatted value, or nil for the zero time.
func Ptr(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := FormatISO(t)
	return &s
}

// Age returns how long ago t was relative to now. Zero times yield 0.
func Age(t, now time.Time) time.Duration {
	if t.IsZero() {
		return 0
	}
	return now.Sub(t)
}

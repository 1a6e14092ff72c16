package envelope

import (
	"regexp"
	"time"
)

// GEF wire timestamp: UTC, exactly three fractional-second digits, trailing
// Z. No offset, no microseconds.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)

// FormatTimestamp renders t in the GEF wire format. Sub-millisecond digits
// are truncated, never rounded, so a stored timestamp can not appear later
// than the underlying clock reading.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Millisecond).Format(timestampLayout)
}

// ValidTimestamp reports whether s is a well-formed GEF timestamp. The
// pattern pins the shape; the parse rejects impossible dates.
func ValidTimestamp(s string) bool {
	if !timestampPattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(timestampLayout, s)
	return err == nil
}

// ParseTimestamp converts a GEF wire timestamp back to time.Time (UTC).
func ParseTimestamp(s string) (time.Time, bool) {
	if !timestampPattern.MatchString(s) {
		return time.Time{}, false
	}
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

package timeutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateKeyLayout is the "2006-01-02" calendar-day key format.
const DateKeyLayout = "2006-01-02"

// ISTOffsetMinutes is the fixed IST offset (UTC+05:30) used by the
// shift-window checks.
const ISTOffsetMinutes = 330

// millisCutoff separates epoch-seconds values from epoch-millis values.
// Anything below ~5138 AD in seconds is still far under this in millis.
const millisCutoff = int64(100_000_000_000)

// NowMillis returns the current time as UTC epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// ToMillis converts a time to UTC epoch milliseconds.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts UTC epoch milliseconds to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// EnsureMillis normalizes a stored timestamp to milliseconds. Legacy rows
// written in epoch seconds are scaled up; millisecond values pass through.
func EnsureMillis(ts int64) int64 {
	if ts > 0 && ts < millisCutoff {
		return ts * 1000
	}
	return ts
}

// DateKey returns the UTC calendar day of the given epoch-millis timestamp.
func DateKey(ms int64) string {
	return FromMillis(ms).Format(DateKeyLayout)
}

// ParseDateKey parses a "2006-01-02" day key as midnight UTC.
func ParseDateKey(key string) (time.Time, error) {
	return time.ParseInLocation(DateKeyLayout, key, time.UTC)
}

// AddDaysToKey shifts a day key by n calendar days.
func AddDaysToKey(key string, n int) (string, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DateKeyLayout), nil
}

// isoLayouts are tried in order for server datetime strings. Zone-less
// layouts are interpreted as UTC; the server speaks UTC throughout.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseFlexibleMillis normalizes a server timestamp to UTC epoch millis.
// Accepts ISO datetime strings (with or without zone suffix or fractional
// seconds) and raw numeric ticks: values at millisecond scale pass through,
// 10-digit epoch-seconds values are scaled up.
func ParseFlexibleMillis(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("non-positive timestamp %q", raw)
		}
		return EnsureMillis(n), nil
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("cannot parse timestamp %q", raw)
}

// FlexibleMillisFromJSON normalizes a JSON timestamp field that may arrive as
// a string or a bare number.
func FlexibleMillisFromJSON(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing timestamp")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseFlexibleMillis(s)
	}
	return ParseFlexibleMillis(string(raw))
}

// ParseClockMinutes parses a "15:04" clock string into minutes of day.
func ParseClockMinutes(clock string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(clock))
	if err != nil {
		return 0, fmt.Errorf("cannot parse clock %q: %w", clock, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// MinutesOfDayUTC returns the minutes elapsed since UTC midnight for an
// epoch-millis timestamp.
func MinutesOfDayUTC(ms int64) int {
	t := FromMillis(ms)
	return t.Hour()*60 + t.Minute()
}

// ISTMinutesOfDay returns the IST-equivalent minutes of day for an instant.
func ISTMinutesOfDay(t time.Time) int {
	utc := t.UTC()
	return (utc.Hour()*60 + utc.Minute() + ISTOffsetMinutes) % (24 * 60)
}

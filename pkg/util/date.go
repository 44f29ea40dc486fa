package util

import (
	"strconv"
	"time"
)

// ParseTime accepts RFC3339, RFC3339Nano and unix seconds or milliseconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		// 13 digits and up is milliseconds
		if ts >= 1e12 {
			return time.UnixMilli(ts), true
		}
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns def if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// ClampRange orders from/to and caps the window at max, keeping to fixed.
func ClampRange(from, to time.Time, max time.Duration) (time.Time, time.Time) {
	if to.Before(from) {
		from, to = to, from
	}
	if max > 0 && to.Sub(from) > max {
		from = to.Add(-max)
	}
	return from, to
}

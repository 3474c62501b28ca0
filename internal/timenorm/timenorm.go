// Package timenorm turns the timestamp shapes found in the staging tables
// (epoch seconds, milliseconds, microseconds, ISO-8601 strings) into UTC
// instants.
//
// Numeric values are told apart by magnitude:
//
//	|v| > 1e17          rejected (out of range)
//	|v| > 1e14          microseconds
//	|v| > 1e10          milliseconds
//	otherwise           seconds
//
// A millisecond epoch for any date after 1973 exceeds 1e11, while a second
// epoch stays below 1e10 until the year 2286. Microsecond epochs after 1973
// exceed 1e14, which keeps them apart from milliseconds up to the year 5138.
package timenorm

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	maxMagnitude   = 1e17
	microThreshold = 1e14
	milliThreshold = 1e10
)

// isoLayouts are tried in order after a trailing Z has been rewritten to +00:00.
// Basic offsets (+0200) and hour-only offsets (+02) are accepted as well.
var isoLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05Z07",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalize converts raw into a UTC instant and shifts it by offsetMinutes.
// The second return value is false when raw is nil, of an unsupported type,
// malformed, or out of range; callers treat that as "skip this record".
func Normalize(raw any, offsetMinutes int) (time.Time, bool) {
	t, ok := parse(raw)
	if !ok {
		return time.Time{}, false
	}
	if offsetMinutes != 0 {
		t = t.Add(time.Duration(offsetMinutes) * time.Minute)
	}
	return t.UTC(), true
}

// First normalizes the candidates in order and returns the first success
func First(offsetMinutes int, candidates ...any) (time.Time, bool) {
	for _, c := range candidates {
		if t, ok := Normalize(c, offsetMinutes); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// FromNumber interprets v as an epoch using the magnitude table
func FromNumber(v float64) (time.Time, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > maxMagnitude {
		return time.Time{}, false
	}
	secs := v
	switch {
	case v > microThreshold:
		secs = v / 1e6
	case v > milliThreshold:
		secs = v / 1e3
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC(), true
}

// FromString parses a numeric epoch string or an ISO-8601 timestamp
func FromString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return FromNumber(v)
	}
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "+00:00"
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// TruncateHour returns the top of the hour containing t, in UTC
func TruncateHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// Epoch returns t as whole epoch seconds
func Epoch(t time.Time) int64 {
	return t.Unix()
}

// MondayWeekday returns the day of week with Monday = 0 and Sunday = 6
func MondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func parse(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v.UTC(), true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return parse(*v)
	case float64:
		return FromNumber(v)
	case float32:
		return FromNumber(float64(v))
	case int:
		return FromNumber(float64(v))
	case int32:
		return FromNumber(float64(v))
	case int64:
		return FromNumber(float64(v))
	case uint64:
		return FromNumber(float64(v))
	case *float64:
		if v == nil {
			return time.Time{}, false
		}
		return FromNumber(*v)
	case *int64:
		if v == nil {
			return time.Time{}, false
		}
		return FromNumber(float64(*v))
	case *int:
		if v == nil {
			return time.Time{}, false
		}
		return FromNumber(float64(*v))
	case string:
		return FromString(v)
	case *string:
		if v == nil {
			return time.Time{}, false
		}
		return FromString(*v)
	case []byte:
		return FromString(string(v))
	default:
		return time.Time{}, false
	}
}

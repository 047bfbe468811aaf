// Package datename resolves symbolic day names ("yesterday", "monday",
// "3d_ago") into concrete calendar dates and provides the string-date
// arithmetic the sensor transforms need.
package datename

import (
	"log"
	"math"
	"strings"
	"time"
)

// DayFormat is the wire format for all calendar dates.
const DayFormat = "2006-01-02"

// DayType classifies a symbolic day name.
type DayType int

const (
	Unknown DayType = iota
	Yesterday
	Weekday
	DaysAgo
)

// weekdayNames is ordered Monday-first to match the resolution
// arithmetic below.
var weekdayNames = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// TypeOf classifies name. Names are matched lowercase; "8_days_ago" and
// "8d_ago" both classify as DaysAgo.
func TypeOf(name string) DayType {
	name = strings.ToLower(name)
	if name == "yesterday" {
		return Yesterday
	}
	for _, wd := range weekdayNames {
		if name == wd {
			return Weekday
		}
	}
	if strings.Contains(name, "d_ago") || strings.Contains(name, "days_ago") {
		return DaysAgo
	}
	return Unknown
}

// weekdayIndex returns Monday=0..Sunday=6 for t.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Resolve maps a symbolic day name onto a concrete date relative to
// today. Weekday names always resolve to a strictly past date: asking
// for "monday" on a Monday gives the Monday a week earlier. Unknown
// names and unparseable offsets fall back to yesterday with a log line
// rather than failing.
func Resolve(name string, today time.Time) string {
	daysAgo := -1
	switch TypeOf(name) {
	case Yesterday:
		daysAgo = 1
	case Weekday:
		target := 0
		for i, wd := range weekdayNames {
			if strings.ToLower(name) == wd {
				target = i
				break
			}
		}
		daysAgo = (weekdayIndex(today) - target + 7) % 7
		if daysAgo == 0 {
			daysAgo = 7
		}
	case DaysAgo:
		if n, ok := leadingInt(name); ok {
			daysAgo = n
		}
	}
	if daysAgo < 0 {
		log.Printf("datename: unknown monitored day %q, defaulting to yesterday", name)
		daysAgo = 1
	}
	return today.AddDate(0, 0, -daysAgo).Format(DayFormat)
}

// leadingInt parses the digits at the front of s.
func leadingInt(s string) (int, bool) {
	n := 0
	i := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n, i > 0
}

// BackfillStep returns the next older date to try when current has no
// data: one day back for yesterday/days-ago names, a full week back for
// weekday names. Unknown names have no backfill step and return "".
func BackfillStep(name, current string) string {
	switch TypeOf(name) {
	case Yesterday, DaysAgo:
		return AddDays(current, -1)
	case Weekday:
		return AddDays(current, -7)
	}
	return ""
}

// Window computes the fetch range covering every resolved date, padded
// seven days back for backfill headroom and one day forward for
// timezone skew. With no dates configured it degenerates to
// (today, today).
func Window(resolved map[string]string, today time.Time) (start, end string) {
	if len(resolved) == 0 {
		t := today.Format(DayFormat)
		return t, t
	}
	min, max := "", ""
	for _, d := range resolved {
		if min == "" || d < min {
			min = d
		}
		if max == "" || d > max {
			max = d
		}
	}
	return AddDays(min, -7), AddDays(max, 1)
}

// AddDays shifts a YYYY-MM-DD date by days. Malformed input is
// returned unchanged.
func AddDays(date string, days int) string {
	t, err := time.Parse(DayFormat, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, days).Format(DayFormat)
}

// SecondsToHours converts a duration in seconds to hours rounded to two
// decimals. Non-numeric input yields nil so missing API fields degrade
// to empty attributes instead of garbage.
func SecondsToHours(v any) any {
	f, ok := asFloat(v)
	if !ok {
		return nil
	}
	return math.Round(f/36) / 100
}

// ClockFromMidnight renders an offset in seconds from midnight as an
// HH:MM clock time. Negative offsets wrap into the previous evening
// (-3600 renders as "23:00").
func ClockFromMidnight(seconds int) string {
	base := time.Date(2000, 1, 2, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(seconds) * time.Second).Format("15:04")
}

// HourMinute renders an RFC 3339 timestamp as HH:MM local to the
// timestamp's own zone offset. Unparseable input is returned unchanged.
func HourMinute(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04")
}

// asFloat coerces the numeric types JSON decoding produces.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Round2 rounds to two decimals, matching the precision the vendor API
// uses for derived values.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// DayOf extracts the date part of an RFC 3339 timestamp. Unparseable
// input returns "".
func DayOf(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ""
	}
	return t.Format(DayFormat)
}

// Title uppercases the first letter of a day name for log messages.
func Title(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeFields are the calendar and clock components of an instant as seen
// in the view zone.
type TimeFields struct {
	Year    int
	Month   time.Month
	Day     int
	Hour    int
	Minute  int
	Second  int
	Instant time.Time
}

// Index derives calendar and clock fields from t in loc. Filtering and
// aggregation both go through Index so they agree on day boundaries.
func Index(t time.Time, loc *time.Location) TimeFields {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	return TimeFields{
		Year:    lt.Year(),
		Month:   lt.Month(),
		Day:     lt.Day(),
		Hour:    lt.Hour(),
		Minute:  lt.Minute(),
		Second:  lt.Second(),
		Instant: t,
	}
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	fa, fb := Index(a, loc), Index(b, loc)
	return fa.Year == fb.Year && fa.Month == fb.Month && fa.Day == fb.Day
}

// IsMidnight reports whether t has no time-of-day component in loc.
func IsMidnight(t time.Time, loc *time.Location) bool {
	f := Index(t, loc)
	return f.Hour == 0 && f.Minute == 0 && f.Second == 0
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	f := Index(t, loc)
	return time.Date(f.Year, f.Month, f.Day, 0, 0, 0, 0, loc)
}

// ComposeInstant combines the calendar day of date with a time of day in
// "HH:MM" or "HH:MM:SS" form. An empty clock keeps date's own time.
func ComposeInstant(date time.Time, clockOfDay string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	clockOfDay = strings.TrimSpace(clockOfDay)
	if clockOfDay == "" {
		return date.In(loc), nil
	}

	parts := strings.Split(clockOfDay, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return time.Time{}, fmt.Errorf("invalid time of day %q", clockOfDay)
	}
	limits := []int{23, 59, 59}
	vals := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return time.Time{}, fmt.Errorf("invalid time of day %q", clockOfDay)
		}
		vals[i] = n
	}

	f := Index(date, loc)
	return time.Date(f.Year, f.Month, f.Day, vals[0], vals[1], vals[2], 0, loc), nil
}

package domain

import "time"

// FilterByDate keeps observations whose calendar day in loc equals date's.
// A nil date passes obs through unchanged. No match yields an empty,
// non-nil slice; callers render that as the "no data" state.
//
// Observations without a timestamp never match a selected date.
func FilterByDate(obs []Observation, date *time.Time, loc *time.Location) []Observation {
	if date == nil {
		return obs
	}
	want := Index(*date, loc)
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if !o.HasTimestamp() {
			continue
		}
		got := Index(o.Timestamp, loc)
		if got.Year == want.Year && got.Month == want.Month && got.Day == want.Day {
			out = append(out, o)
		}
	}
	return out
}

// WithCoordinates returns the observations that can be placed on the map.
func WithCoordinates(obs []Observation) []Observation {
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if o.HasCoordinate() {
			out = append(out, o)
		}
	}
	return out
}

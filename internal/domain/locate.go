package domain

import (
	"time"

	"github.com/golang/geo/r2"
)

// TooltipContent is what the map shows for a click.
type TooltipContent struct {
	Found       bool        `json:"found"`
	LocationKey string      `json:"location_key,omitempty"`
	Timestamp   *time.Time  `json:"timestamp,omitempty"`
	Value       float64     `json:"value,omitempty"`
	Attributes  *Attributes `json:"attributes,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// NoTooltipMessage is shown when no observation matches a click.
const NoTooltipMessage = "No data for this date/time"

// LocateNearestObservation finds the observation nearest to c, then, among
// all observations sharing its location key, the one closest in time to
// asOf. Distance is planar in degrees; the dashboard covers one region, so
// no geodesic correction is applied. Ties keep the first observation seen.
func LocateNearestObservation(obs []Observation, c Coordinate, asOf time.Time) (Observation, bool) {
	target := r2.Point{X: c.Lon, Y: c.Lat}

	nearest := -1
	best := 0.0
	for i, o := range obs {
		if !o.HasCoordinate() {
			continue
		}
		d := r2.Point{X: o.Coordinate.Lon, Y: o.Coordinate.Lat}.Sub(target).Norm()
		if nearest < 0 || d < best {
			nearest, best = i, d
		}
	}
	if nearest < 0 {
		return Observation{}, false
	}

	key := obs[nearest].LocationKey
	match := -1
	var bestGap time.Duration
	for i, o := range obs {
		if o.LocationKey != key || !o.HasTimestamp() {
			continue
		}
		gap := o.Timestamp.Sub(asOf).Abs()
		if match < 0 || gap < bestGap {
			match, bestGap = i, gap
		}
	}
	if match < 0 {
		return Observation{}, false
	}
	return obs[match], true
}

// LocateNearest returns the tooltip attributes for a click at c as of asOf.
func LocateNearest(obs []Observation, c Coordinate, asOf time.Time) (Attributes, bool) {
	o, ok := LocateNearestObservation(obs, c, asOf)
	if !ok {
		return Attributes{}, false
	}
	return o.Attributes, true
}

// BuildTooltip wraps LocateNearestObservation into renderable content.
func BuildTooltip(obs []Observation, c Coordinate, asOf time.Time) TooltipContent {
	o, ok := LocateNearestObservation(obs, c, asOf)
	if !ok {
		return TooltipContent{Message: NoTooltipMessage}
	}
	ts := o.Timestamp
	attrs := o.Attributes
	return TooltipContent{
		Found:       true,
		LocationKey: o.LocationKey,
		Timestamp:   &ts,
		Value:       o.Value,
		Attributes:  &attrs,
	}
}

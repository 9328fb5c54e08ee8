package domain

import (
	"math"
	"time"
)

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both axes are finite and within WGS-84 bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Attributes are display-only fields shown in map tooltips. They are kept as
// the raw text of the source table and never used in computation.
type Attributes struct {
	Name             string `json:"name,omitempty"`
	TourDataID       string `json:"tour_data_id,omitempty"`
	ObjectID         string `json:"object_id,omitempty"`
	Temperature      string `json:"temperature,omitempty"`
	RelativeHumidity string `json:"relative_humidity,omitempty"`
	Precipitation    string `json:"precipitation,omitempty"`
	WindSpeed        string `json:"wind_speed,omitempty"`
	CloudCoverLow    string `json:"cloud_cover_low,omitempty"`
	CloudCoverMid    string `json:"cloud_cover_mid,omitempty"`
	CloudCoverHigh   string `json:"cloud_cover_high,omitempty"`
}

// Observation is one parsed visitor ping. Observations are values; nothing
// downstream of the parser mutates them.
type Observation struct {
	InstallationID string      `json:"installation_id,omitempty"`
	TrackerID      string      `json:"tracker_id,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
	Value          float64     `json:"value"`
	Coordinate     *Coordinate `json:"coordinate,omitempty"`
	LocationKey    string      `json:"location_key,omitempty"`
	Attributes     Attributes  `json:"attributes"`
}

// HasTimestamp reports whether the timestamp column parsed.
func (o Observation) HasTimestamp() bool {
	return !o.Timestamp.IsZero()
}

// HasCoordinate reports whether the observation can be placed on the map.
func (o Observation) HasCoordinate() bool {
	return o.Coordinate != nil && o.Coordinate.Valid()
}

// HourBucket is the aggregated metric for one hour of the day.
type HourBucket struct {
	Hour   int     `json:"hour"`
	Metric float64 `json:"metric"`
}

// HeatSample is one point handed to the heat-layer renderer. Selected marks
// samples from the highlighted hour.
type HeatSample struct {
	Coordinate Coordinate `json:"coordinate"`
	Intensity  float64    `json:"intensity"`
	Selected   bool       `json:"selected,omitempty"`
}

package domain

import (
	"math"
	"time"
)

// Zoom levels outside [MinZoom, MaxZoom] are rejected by ValidateZoom.
const (
	MinZoom = 0
	MaxZoom = 30
)

// HeatConfig bounds the replication and intensity scales used by the heat
// synthesizer.
type HeatConfig struct {
	MinSamples   int
	MaxSamples   int
	MinIntensity float64
	MaxIntensity float64
	// BaseZoom is the zoom level at which replication is unscaled.
	BaseZoom float64
	// ZoomStep is the replication gain per zoom level above BaseZoom.
	ZoomStep float64
}

// DefaultHeatConfig matches the map's initial view (zoom 7.5).
func DefaultHeatConfig() HeatConfig {
	return HeatConfig{
		MinSamples:   15,
		MaxSamples:   50,
		MinIntensity: 0.3,
		MaxIntensity: 1.0,
		BaseZoom:     7.5,
		ZoomStep:     0.3,
	}
}

// LayerHandle identifies an installed heat layer. Whoever installs a layer
// owns its handle until it is released.
type LayerHandle string

// HeatPoint is the synthesis plan for one observation: where it goes, how
// hot it is, and how many identical samples encode its density.
type HeatPoint struct {
	Coordinate  Coordinate `json:"coordinate"`
	Intensity   float64    `json:"intensity"`
	Replication int        `json:"replication"`
}

// ValidateZoom returns ErrInvalidZoom for a non-finite zoom or one outside
// [MinZoom, MaxZoom].
func ValidateZoom(zoom float64) error {
	if math.IsNaN(zoom) || zoom < MinZoom || zoom > MaxZoom {
		return ErrInvalidZoom
	}
	return nil
}

// ZoomFactor is the replication multiplier at zoom. It increases
// monotonically with zoom.
func (c HeatConfig) ZoomFactor(zoom float64) float64 {
	return 1 + (zoom-c.BaseZoom)*c.ZoomStep
}

// Plan computes the heat plan for obs at zoom. Observations without a valid
// coordinate are skipped; an empty result means nothing should be drawn.
func Plan(obs []Observation, zoom float64, cfg HeatConfig) []HeatPoint {
	located := WithCoordinates(obs)
	if len(located) == 0 {
		return nil
	}

	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for _, o := range located {
		minVal = math.Min(minVal, o.Value)
		maxVal = math.Max(maxVal, o.Value)
	}

	replication := linearScale(minVal, maxVal, float64(cfg.MinSamples), float64(cfg.MaxSamples))
	intensity := linearScale(minVal, maxVal, cfg.MinIntensity, cfg.MaxIntensity)
	factor := cfg.ZoomFactor(zoom)

	points := make([]HeatPoint, 0, len(located))
	for _, o := range located {
		// Clamp before converting: a huge zoom would overflow int.
		n := clampFloat(replication(o.Value)*factor, float64(cfg.MinSamples), float64(cfg.MaxSamples))
		if math.IsNaN(n) {
			n = float64(cfg.MinSamples)
		}
		points = append(points, HeatPoint{
			Coordinate:  *o.Coordinate,
			Intensity:   clampFloat(intensity(o.Value), cfg.MinIntensity, cfg.MaxIntensity),
			Replication: clampInt(int(math.Round(n)), cfg.MinSamples, cfg.MaxSamples),
		})
	}
	return points
}

// SynthesizeHeatPoints expands the plan for obs at zoom into individual
// samples, Replication copies per observation, in input order.
func SynthesizeHeatPoints(obs []Observation, zoom float64, cfg HeatConfig) []HeatSample {
	return SynthesizeHighlighted(obs, zoom, nil, time.Local, cfg)
}

// SynthesizeHighlighted is SynthesizeHeatPoints with the samples of
// observations falling in the highlighted hour (read in loc) marked
// Selected. A nil hour marks nothing.
func SynthesizeHighlighted(obs []Observation, zoom float64, highlighted *int, loc *time.Location, cfg HeatConfig) []HeatSample {
	located := WithCoordinates(obs)
	plan := Plan(located, zoom, cfg)
	total := 0
	for _, p := range plan {
		total += p.Replication
	}
	samples := make([]HeatSample, 0, total)
	for i, p := range plan {
		o := located[i]
		selected := highlighted != nil && o.HasTimestamp() && Index(o.Timestamp, loc).Hour == *highlighted
		for range p.Replication {
			samples = append(samples, HeatSample{Coordinate: p.Coordinate, Intensity: p.Intensity, Selected: selected})
		}
	}
	return samples
}

// linearScale maps [d0,d1] onto [r0,r1]. A zero-width domain maps every
// value to the range midpoint.
func linearScale(d0, d1, r0, r1 float64) func(float64) float64 {
	if d1 == d0 {
		mid := (r0 + r1) / 2
		return func(float64) float64 { return mid }
	}
	return func(v float64) float64 {
		return r0 + (v-d0)/(d1-d0)*(r1-r0)
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

package domain

import (
	"sort"
	"time"
)

// NoDataMessage is shown instead of a chart when the filtered set is empty.
const NoDataMessage = "No data available for selected date"

// Metric selects how observations in one hour are reduced.
type Metric int

const (
	// MetricSum adds up Value. It is the canonical metric: it weights each
	// ping by its people count.
	MetricSum Metric = iota
	// MetricCount counts observations regardless of Value.
	MetricCount
)

func (m Metric) String() string {
	switch m {
	case MetricCount:
		return "count"
	default:
		return "sum"
	}
}

// BarChart is what the bar renderer receives for one filter cycle.
type BarChart struct {
	Buckets     []HourBucket `json:"buckets"`
	Highlighted *int         `json:"highlighted_hour"`
	Empty       bool         `json:"empty"`
	Message     string       `json:"message,omitempty"`
}

// AggregateByHour sums Value per hour of day, ascending by hour. Hours
// without observations are omitted.
func AggregateByHour(obs []Observation, loc *time.Location) []HourBucket {
	return AggregateByHourWith(obs, loc, MetricSum)
}

// AggregateByHourWith reduces obs per hour of day with the given metric.
// Observations without a timestamp are skipped.
func AggregateByHourWith(obs []Observation, loc *time.Location, metric Metric) []HourBucket {
	var totals [24]float64
	var present [24]bool
	for _, o := range obs {
		if !o.HasTimestamp() {
			continue
		}
		h := Index(o.Timestamp, loc).Hour
		present[h] = true
		if metric == MetricCount {
			totals[h]++
		} else {
			totals[h] += o.Value
		}
	}

	buckets := make([]HourBucket, 0, 24)
	for h := range totals {
		if present[h] {
			buckets = append(buckets, HourBucket{Hour: h, Metric: totals[h]})
		}
	}
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].Hour < buckets[j].Hour })
	return buckets
}

// HighlightedHour resolves which bar is emphasized: the explicitly selected
// hour, else the selected date's hour when it carries a time of day, else
// none.
func HighlightedHour(selectedHour *int, selectedDate *time.Time, loc *time.Location) *int {
	if selectedHour != nil {
		h := *selectedHour
		return &h
	}
	if selectedDate != nil && !IsMidnight(*selectedDate, loc) {
		h := Index(*selectedDate, loc).Hour
		return &h
	}
	return nil
}

// ToggleHour applies a bar click: clicking the selected hour clears the
// selection, any other hour becomes selected.
func ToggleHour(current *int, clicked int) (*int, error) {
	if clicked < 0 || clicked > 23 {
		return current, ErrInvalidHour
	}
	if current != nil && *current == clicked {
		return nil, nil
	}
	return &clicked, nil
}

// BuildBarChart aggregates obs by hour and marks the highlighted bar. An
// empty result is flagged so the renderer shows a message instead of axes.
func BuildBarChart(obs []Observation, highlighted *int, loc *time.Location) BarChart {
	buckets := AggregateByHour(obs, loc)
	chart := BarChart{Buckets: buckets, Highlighted: highlighted}
	if len(buckets) == 0 {
		chart.Empty = true
		chart.Message = NoDataMessage
	}
	return chart
}

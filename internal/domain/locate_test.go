package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateNearest(t *testing.T) {
	res, err := Parse(readFixture(t), time.UTC)
	require.NoError(t, err)
	obs := res.Observations

	t.Run("closest site then closest time", func(t *testing.T) {
		// next to Hallstatt, asking for the late morning reading
		attrs, ok := LocateNearest(obs, Coordinate{Lat: 47.56, Lon: 13.65}, at(9, 40))
		require.True(t, ok)
		assert.Equal(t, "Marktplatz", attrs.Name)
		assert.Equal(t, "0.8", attrs.Temperature)
	})

	t.Run("group includes rows without coordinates", func(t *testing.T) {
		// Gmunden's 05:30 row has no coordinate but shares the location key
		o, ok := LocateNearestObservation(obs, Coordinate{Lat: 47.9, Lon: 13.57}, at(5, 31))
		require.True(t, ok)
		assert.Equal(t, "Gmunden", o.LocationKey)
		assert.Equal(t, at(5, 30), o.Timestamp)
		assert.Nil(t, o.Coordinate)
	})

	t.Run("searches across days", func(t *testing.T) {
		o, ok := LocateNearestObservation(obs, Coordinate{Lat: 47.9, Lon: 13.57}, time.Date(2025, 1, 2, 6, 0, 0, 0, time.UTC))
		require.True(t, ok)
		assert.Equal(t, 6.0, o.Value)
	})

	t.Run("nothing placeable", func(t *testing.T) {
		_, ok := LocateNearest([]Observation{{Timestamp: at(1, 0), LocationKey: "X"}}, Coordinate{Lat: 47, Lon: 13}, at(1, 0))
		assert.False(t, ok)
	})

	t.Run("group without timestamps", func(t *testing.T) {
		only := []Observation{{LocationKey: "X", Coordinate: &Coordinate{Lat: 47, Lon: 13}}}
		_, ok := LocateNearest(only, Coordinate{Lat: 47, Lon: 13}, at(1, 0))
		assert.False(t, ok)
	})

	t.Run("ties keep the first observation", func(t *testing.T) {
		c := &Coordinate{Lat: 47, Lon: 13}
		tied := []Observation{
			{LocationKey: "A", Timestamp: at(8, 0), Coordinate: c, Attributes: Attributes{Name: "first"}},
			{LocationKey: "A", Timestamp: at(10, 0), Coordinate: c, Attributes: Attributes{Name: "second"}},
		}
		attrs, ok := LocateNearest(tied, Coordinate{Lat: 47, Lon: 13}, at(9, 0))
		require.True(t, ok)
		assert.Equal(t, "first", attrs.Name)
	})
}

func TestBuildTooltip(t *testing.T) {
	obs := []Observation{{
		LocationKey: "Hallstatt",
		Timestamp:   at(9, 15),
		Value:       7,
		Coordinate:  &Coordinate{Lat: 47.5622, Lon: 13.6493},
		Attributes:  Attributes{Name: "Marktplatz", WindSpeed: "4.2"},
	}}

	tip := BuildTooltip(obs, Coordinate{Lat: 47.5, Lon: 13.6}, at(9, 0))
	require.True(t, tip.Found)
	assert.Equal(t, "Hallstatt", tip.LocationKey)
	assert.Equal(t, 7.0, tip.Value)
	assert.Equal(t, "4.2", tip.Attributes.WindSpeed)
	assert.Empty(t, tip.Message)

	empty := BuildTooltip(nil, Coordinate{Lat: 47.5, Lon: 13.6}, at(9, 0))
	assert.False(t, empty.Found)
	assert.Equal(t, NoTooltipMessage, empty.Message)
}

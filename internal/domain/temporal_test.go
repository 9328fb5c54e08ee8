package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestSameDay(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	late := time.Date(2025, 1, 1, 23, 30, 0, 0, time.UTC)
	next := time.Date(2025, 1, 2, 0, 15, 0, 0, time.UTC)

	assert.False(t, SameDay(late, next, time.UTC))
	// Both fall on Jan 2 one hour east of UTC.
	assert.True(t, SameDay(late, next, cet))
	assert.True(t, SameDay(at(0, 0), at(23, 59), time.UTC))
}

func TestStartOfDay(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	got := StartOfDay(time.Date(2025, 1, 1, 23, 30, 0, 0, time.UTC), cet)

	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, cet), got)
	assert.True(t, IsMidnight(got, cet))
	assert.False(t, IsMidnight(got, time.UTC))
}

func TestIsMidnight(t *testing.T) {
	assert.True(t, IsMidnight(at(0, 0), time.UTC))
	assert.False(t, IsMidnight(at(0, 1), time.UTC))
	assert.False(t, IsMidnight(time.Date(2025, 1, 1, 0, 0, 5, 0, time.UTC), time.UTC))
}

func TestToday(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 23, 30, 0, 0, time.UTC)))
	defer SetClock(nil)

	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Today(time.UTC))

	tokyo := time.FixedZone("JST", 9*3600)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, tokyo), Today(tokyo))
}

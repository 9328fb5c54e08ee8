package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/visitor-density/internal/domain"
	"github.com/couchcryptid/visitor-density/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const table = "installationId;timestamp;value\ninst-01;2025-01-02T05:10:00;6\n"

// sliceReader replays msgs and then reports io.EOF, like a closed reader.
type sliceReader struct {
	msgs   []kafkago.Message
	closed bool
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafkago.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafkago.Message{}, err
	}
	if len(r.msgs) == 0 {
		return kafkago.Message{}, io.EOF
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *sliceReader) Close() error {
	r.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSource(msgs ...kafkago.Message) (*Source, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return newSource(&sliceReader{msgs: msgs}, time.UTC, discardLogger(), m), m
}

func msg(key, value string, offset int64) kafkago.Message {
	return kafkago.Message{Key: []byte(key), Value: []byte(value), Offset: offset}
}

func TestToMessage(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, 1, 3, 6, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	m := toMessage(DayTable{
		Day:   time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		Table: []byte(table),
		Rows:  1,
	})

	assert.Equal(t, []byte("2025-01-02"), m.Key)
	assert.Equal(t, table, string(m.Value))
	require.Len(t, m.Headers, 2)
	assert.Equal(t, "rows", m.Headers[0].Key)
	assert.Equal(t, []byte("1"), m.Headers[0].Value)
	assert.Equal(t, "published_at", m.Headers[1].Key)
	assert.Equal(t, []byte("2025-01-03T06:00:00Z"), m.Headers[1].Value)
}

func TestSource_StoresLatestTablePerDay(t *testing.T) {
	src, m := newTestSource(
		msg("2025-01-01", "first", 0),
		msg("2025-01-02", "second", 1),
		msg("2025-01-01", "first-revised", 2),
	)
	require.NoError(t, src.Run(context.Background()))

	got, err := src.Fetch(context.Background(), time.Date(2025, 1, 1, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "first-revised", string(got))

	got, err = src.Fetch(context.Background(), time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	assert.ElementsMatch(t, []string{"2025-01-01", "2025-01-02"}, src.Days())
	assert.InDelta(t, 3, testutil.ToFloat64(m.FeedMessages.WithLabelValues("stored")), 0)
}

func TestSource_ZeroDayReturnsLatest(t *testing.T) {
	src, _ := newTestSource(
		msg("2025-01-02", "second", 0),
		msg("2025-01-01", "first", 1),
	)
	require.NoError(t, src.Run(context.Background()))

	got, err := src.Fetch(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
}

func TestSource_SkipsBadMessages(t *testing.T) {
	src, m := newTestSource(
		msg("yesterday", "x", 0),
		msg("2025-01-01", "", 1),
	)
	require.NoError(t, src.Run(context.Background()))

	assert.Empty(t, src.Days())
	assert.InDelta(t, 2, testutil.ToFloat64(m.FeedMessages.WithLabelValues("skipped")), 0)
}

func TestSource_MissingDayIsNetworkError(t *testing.T) {
	src, _ := newTestSource()
	require.NoError(t, src.Run(context.Background()))

	_, err := src.Fetch(context.Background(), time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, domain.IsNetworkError(err))
	require.ErrorIs(t, err, ErrNoTable)
	assert.Contains(t, err.Error(), "2025-01-05")
}

func TestSource_DayKeyUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	r := &sliceReader{msgs: []kafkago.Message{msg("2025-01-02", "jst-day", 0)}}
	src := newSource(r, tokyo, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, src.Run(context.Background()))

	// 2025-01-01 20:00 UTC is already Jan 2 in Tokyo.
	got, err := src.Fetch(context.Background(), time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "jst-day", string(got))
}

func TestSource_RunStopsOnCancel(t *testing.T) {
	src, _ := newTestSource(msg("2025-01-01", "first", 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, src.Run(ctx))
	_, err := src.Fetch(ctx, time.Time{})
	require.Error(t, err)
	assert.True(t, domain.IsNetworkError(err))
}

func TestSource_Close(t *testing.T) {
	r := &sliceReader{}
	src := newSource(r, time.UTC, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, src.Close())
	assert.True(t, r.closed)
}

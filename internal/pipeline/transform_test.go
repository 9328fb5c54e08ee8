package pipeline_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/visitor-density/internal/domain"
	"github.com/couchcryptid/visitor-density/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_Fixture(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := newTestMetrics()
	d := pipeline.NewDecoder(time.UTC, logger, m)

	obs, err := d.Decode(readFixture(t))
	require.NoError(t, err)
	require.Len(t, obs, 10)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.RowsParsed))
	assert.Contains(t, logs.String(), "field treated as absent")
	assert.Contains(t, logs.String(), "column=latitude")
	assert.Contains(t, logs.String(), "field_errors=2")
}

func TestDecoder_DataZone(t *testing.T) {
	vienna := time.FixedZone("CET", 3600)
	d := pipeline.NewDecoder(vienna, discardLogger(), newTestMetrics())

	obs, err := d.Decode([]byte("timestamp;value\n2025-01-01T00:30:00;4\n"))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC), obs[0].Timestamp.UTC())
	assert.Equal(t, 23, domain.Index(obs[0].Timestamp, time.UTC).Hour)
}

func TestDecoder_FormatError(t *testing.T) {
	m := newTestMetrics()
	d := pipeline.NewDecoder(time.UTC, discardLogger(), m)

	for _, in := range []string{"", "value;Ort\n1;Gmunden\n", "timestamp;value\n\"2025-01-01;1\n"} {
		_, err := d.Decode([]byte(in))
		require.Error(t, err, "input %q", strings.TrimSpace(in))
		assert.True(t, domain.IsFormatError(err))
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FormatErrors))
	assert.Zero(t, testutil.ToFloat64(m.RowsParsed))
}

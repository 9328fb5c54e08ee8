package domain

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHeader = "installationId;timestamp;value;Ort;Name;TrackerID;TourdataID;ObjectGUID;Latitude;Longitude"

func readFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "data", "mock", "visitors_250101.csv"))
	require.NoError(t, err)
	return data
}

func TestParse(t *testing.T) {
	t.Run("semicolon table with locale coordinates", func(t *testing.T) {
		raw := []byte(testHeader + "\n" +
			"inst-1;2025-01-01T05:00:00;2;Gmunden;Seeschloss;TR-1;TD-1;abc;47,9062383605987;13,5680551914288\n")

		res, err := Parse(raw, time.UTC)
		require.NoError(t, err)
		require.Len(t, res.Observations, 1)
		assert.Empty(t, res.FieldErrors)
		assert.Equal(t, ';', res.Delimiter)

		o := res.Observations[0]
		assert.Equal(t, "inst-1", o.InstallationID)
		assert.Equal(t, "TR-1", o.TrackerID)
		assert.Equal(t, "Gmunden", o.LocationKey)
		assert.Equal(t, "Seeschloss", o.Attributes.Name)
		assert.Equal(t, "TD-1", o.Attributes.TourDataID)
		assert.Equal(t, "abc", o.Attributes.ObjectID)
		assert.Equal(t, 2.0, o.Value)
		assert.Equal(t, time.Date(2025, 1, 1, 5, 0, 0, 0, time.UTC), o.Timestamp)
		require.NotNil(t, o.Coordinate)
		assert.InDelta(t, 47.9062383605987, o.Coordinate.Lat, 1e-12)
		assert.InDelta(t, 13.5680551914288, o.Coordinate.Lon, 1e-12)
	})

	t.Run("comma table with aliases", func(t *testing.T) {
		raw := []byte("time,count,city,lat,lng,temperature\n" +
			"2025-01-01 07:15,4,Linz,48.3069,14.2858,3.5\n")

		res, err := Parse(raw, time.UTC)
		require.NoError(t, err)
		require.Len(t, res.Observations, 1)
		assert.Equal(t, ',', res.Delimiter)

		o := res.Observations[0]
		assert.Equal(t, "Linz", o.LocationKey)
		assert.Equal(t, 4.0, o.Value)
		assert.Equal(t, "3.5", o.Attributes.Temperature)
		assert.Equal(t, time.Date(2025, 1, 1, 7, 15, 0, 0, time.UTC), o.Timestamp)
		require.NotNil(t, o.Coordinate)
		assert.Equal(t, 48.3069, o.Coordinate.Lat)
	})

	t.Run("unparsable coordinate axis keeps row without coordinate", func(t *testing.T) {
		raw := []byte(testHeader + "\n" +
			"inst-1;2025-01-01T05:00:00;2;Gmunden;;;;;abc;13,56\n" +
			"inst-2;2025-01-01T06:00:00;1;Ebensee;;;;;47,8;\n")

		res, err := Parse(raw, time.UTC)
		require.NoError(t, err)
		require.Len(t, res.Observations, 2)
		assert.Nil(t, res.Observations[0].Coordinate)
		assert.Nil(t, res.Observations[1].Coordinate)
		require.Len(t, res.FieldErrors, 1)
		assert.Equal(t, 1, res.FieldErrors[0].Row)
		assert.Equal(t, ColLatitude, res.FieldErrors[0].Column)
		assert.Equal(t, "abc", res.FieldErrors[0].Raw)
	})

	t.Run("out of bounds coordinate is dropped", func(t *testing.T) {
		raw := []byte(testHeader + "\n" + "i;2025-01-01T05:00:00;1;X;;;;;95,0;13,0\n")

		res, err := Parse(raw, time.UTC)
		require.NoError(t, err)
		assert.Nil(t, res.Observations[0].Coordinate)
		require.Len(t, res.FieldErrors, 1)
		assert.Equal(t, "coordinate", res.FieldErrors[0].Column)
	})

	t.Run("value defaults and clipping", func(t *testing.T) {
		raw := []byte(testHeader + "\n" +
			"i;2025-01-01T05:00:00;;X;;;;;;\n" +
			"i;2025-01-01T05:00:00;UNK;X;;;;;;\n" +
			"i;2025-01-01T05:00:00;-4;X;;;;;;\n" +
			"i;2025-01-01T05:00:00;2,5;X;;;;;;\n" +
			"i;2025-01-01T05:00:00;NaN;X;;;;;;\n")

		res, err := Parse(raw, time.UTC)
		require.NoError(t, err)
		require.Len(t, res.Observations, 5)
		assert.Equal(t, 1.0, res.Observations[0].Value)
		assert.Equal(t, 1.0, res.Observations[1].Value)
		assert.Equal(t, 0.0, res.Observations[2].Value)
		assert.Equal(t, 2.5, res.Observations[3].Value)
		assert.Equal(t, 1.0, res.Observations[4].Value)
		assert.Len(t, res.FieldErrors, 2)
	})

	t.Run("bad timestamp keeps row", func(t *testing.T) {
		raw := []byte(testHeader + "\n" + "i;yesterday;1;X;;;;;;\n")

		res, err := Parse(raw, time.UTC)
		require.NoError(t, err)
		require.Len(t, res.Observations, 1)
		assert.False(t, res.Observations[0].HasTimestamp())
		require.Len(t, res.FieldErrors, 1)
		assert.Equal(t, ColTimestamp, res.FieldErrors[0].Column)
	})

	t.Run("short rows and blank lines", func(t *testing.T) {
		raw := []byte(testHeader + "\n" + "i;2025-01-01T05:00:00\n\n;;;;;;;;;\n")

		res, err := Parse(raw, time.UTC)
		require.NoError(t, err)
		require.Len(t, res.Observations, 1)
		assert.Equal(t, 1.0, res.Observations[0].Value)
		assert.Nil(t, res.Observations[0].Coordinate)
	})

	t.Run("header only", func(t *testing.T) {
		res, err := Parse([]byte(testHeader+"\n"), time.UTC)
		require.NoError(t, err)
		assert.NotNil(t, res.Observations)
		assert.Empty(t, res.Observations)
	})

	t.Run("byte order mark", func(t *testing.T) {
		raw := []byte("\ufeff" + testHeader + "\n" + "i;2025-01-01T05:00:00;1;X;;;;;;\n")
		res, err := Parse(raw, time.UTC)
		require.NoError(t, err)
		assert.Len(t, res.Observations, 1)
	})

	t.Run("data zone applies to naive timestamps", func(t *testing.T) {
		vienna, err := time.LoadLocation("Europe/Vienna")
		require.NoError(t, err)
		raw := []byte(testHeader + "\n" + "i;2025-01-01T05:00:00;1;X;;;;;;\n")

		res, err := Parse(raw, vienna)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 1, 1, 4, 0, 0, 0, time.UTC), res.Observations[0].Timestamp.UTC())
	})
}

func TestParse_FormatErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace", "  \n\t\n"},
		{"no timestamp column", "id;value\n1;2\n"},
		{"plain prose", "this is not a table\n"},
		{"unbalanced quote", testHeader + "\n" + `i;"2025-01-01T05:00:00;1;X` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw), time.UTC)
			require.Error(t, err)
			assert.True(t, IsFormatError(err), "want *FormatError, got %T", err)
		})
	}
}

func TestParse_Fixture(t *testing.T) {
	res, err := Parse(readFixture(t), time.UTC)
	require.NoError(t, err)

	assert.Len(t, res.Observations, 10)
	assert.Len(t, res.FieldErrors, 2)
	assert.Len(t, WithCoordinates(res.Observations), 8)

	// order is preserved from input
	assert.Equal(t, "inst-01", res.Observations[0].InstallationID)
	assert.Equal(t, "inst-05", res.Observations[9].InstallationID)
	assert.Equal(t, 0.0, res.Observations[9].Value)
	assert.Equal(t, "-1.4", res.Observations[0].Attributes.Temperature)
	assert.Equal(t, "88", res.Observations[0].Attributes.RelativeHumidity)
}

func TestParseLocaleFloat(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"47,906", 47.906, false},
		{"47.906", 47.906, false},
		{" 13,5 ", 13.5, false},
		{"", 0, true},
		{"1,2,3", 0, true},
		{"Inf", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLocaleFloat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ';', DetectDelimiter([]byte("a;b\n1,2;3\n")))
	assert.Equal(t, ',', DetectDelimiter([]byte("a,b\n1;2,3\n")))
	assert.Equal(t, ',', DetectDelimiter([]byte("single")))
}

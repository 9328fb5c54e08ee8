package domain

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Canonical column names. Header cells are matched case-insensitively
// against these and their aliases.
const (
	ColInstallationID   = "installationid"
	ColTimestamp        = "timestamp"
	ColValue            = "value"
	ColLocation         = "ort"
	ColName             = "name"
	ColTrackerID        = "trackerid"
	ColTourDataID       = "tourdataid"
	ColObjectID         = "objectguid"
	ColLatitude         = "latitude"
	ColLongitude        = "longitude"
	ColTemperature      = "temperature_2m"
	ColRelativeHumidity = "relative_humidity_2m"
	ColPrecipitation    = "precipitation"
	ColWindSpeed        = "wind_speed_10m"
	ColCloudCoverLow    = "cloud_cover_low"
	ColCloudCoverMid    = "cloud_cover_mid"
	ColCloudCoverHigh   = "cloud_cover_high"
)

var columnAliases = map[string]string{
	"time":        ColTimestamp,
	"count":       ColValue,
	"city":        ColLocation,
	"location":    ColLocation,
	"lat":         ColLatitude,
	"lon":         ColLongitude,
	"lng":         ColLongitude,
	"temperature": ColTemperature,
	"humidity":    ColRelativeHumidity,
	"wind_speed":  ColWindSpeed,
}

// timestampLayouts are tried in order. The export writes local wall-clock
// times without a zone; RFC 3339 is accepted for API extracts.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var (
	errMissing     = errors.New("missing")
	errNotFinite   = errors.New("not a finite number")
	errOutOfBounds = errors.New("coordinate out of bounds")
)

// ParseResult is the output of Parse. FieldErrors lists every field that was
// recovered by treating it as absent.
type ParseResult struct {
	Observations []Observation
	FieldErrors  []*FieldError
	Delimiter    rune
}

// Parse turns a delimited visitor table into observations, one per data
// row, in input order. Timestamps without a zone are read in loc.
//
// Only structural problems fail the batch (a *FormatError). Bad numeric or
// coordinate fields are recorded in ParseResult.FieldErrors and the row is
// kept.
func Parse(raw []byte, loc *time.Location) (ParseResult, error) {
	if loc == nil {
		loc = time.Local
	}
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	if len(bytes.TrimSpace(raw)) == 0 {
		return ParseResult{}, &FormatError{Reason: "empty input"}
	}

	delim := DetectDelimiter(raw)
	r := NewTableReader(bytes.NewReader(raw), delim)

	header, err := r.Read()
	if err != nil {
		return ParseResult{}, &FormatError{Reason: "read header", Err: err}
	}
	cols := IndexHeader(header)
	if _, ok := cols[ColTimestamp]; !ok {
		return ParseResult{}, &FormatError{Reason: "header has no timestamp column"}
	}

	res := ParseResult{Delimiter: delim}
	row := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ParseResult{}, &FormatError{Reason: "read rows", Err: err}
		}
		if blankRecord(rec) {
			continue
		}
		row++
		obs, fieldErrs := parseRow(row, rec, cols, loc)
		res.Observations = append(res.Observations, obs)
		res.FieldErrors = append(res.FieldErrors, fieldErrs...)
	}

	if res.Observations == nil {
		res.Observations = []Observation{}
	}
	return res, nil
}

// DetectDelimiter picks ';' when the header line contains one, ',' otherwise.
func DetectDelimiter(raw []byte) rune {
	line := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		line = raw[:i]
	}
	if bytes.IndexByte(line, ';') >= 0 {
		return ';'
	}
	return ','
}

// NewTableReader returns a csv.Reader configured for visitor tables. Rows
// may be shorter or longer than the header.
func NewTableReader(r io.Reader, delim rune) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

// IndexHeader maps canonical column names to their position in header.
// The first occurrence of a column wins.
func IndexHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canon, ok := columnAliases[name]; ok {
			name = canon
		}
		if _, seen := cols[name]; !seen {
			cols[name] = i
		}
	}
	return cols
}

// ParseTimestamp reads an ISO-like timestamp. Layouts without a zone are
// interpreted in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errMissing
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ParseLocaleFloat parses a number that may use a comma as the decimal
// separator ("47,9062"). Only the first comma is rewritten.
func ParseLocaleFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errMissing
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

func parseRow(row int, rec []string, cols map[string]int, loc *time.Location) (Observation, []*FieldError) {
	var errs []*FieldError
	field := func(col string) string {
		i, ok := cols[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	fail := func(col, raw string, err error) {
		errs = append(errs, &FieldError{Row: row, Column: col, Raw: raw, Err: err})
	}

	obs := Observation{
		InstallationID: field(ColInstallationID),
		TrackerID:      field(ColTrackerID),
		LocationKey:    field(ColLocation),
		Value:          1,
		Attributes: Attributes{
			Name:             field(ColName),
			TourDataID:       field(ColTourDataID),
			ObjectID:         field(ColObjectID),
			Temperature:      field(ColTemperature),
			RelativeHumidity: field(ColRelativeHumidity),
			Precipitation:    field(ColPrecipitation),
			WindSpeed:        field(ColWindSpeed),
			CloudCoverLow:    field(ColCloudCoverLow),
			CloudCoverMid:    field(ColCloudCoverMid),
			CloudCoverHigh:   field(ColCloudCoverHigh),
		},
	}

	rawTS := field(ColTimestamp)
	if ts, err := ParseTimestamp(rawTS, loc); err != nil {
		fail(ColTimestamp, rawTS, err)
	} else {
		obs.Timestamp = ts
	}

	if rawVal := field(ColValue); rawVal != "" {
		v, err := ParseLocaleFloat(rawVal)
		switch {
		case err != nil:
			fail(ColValue, rawVal, err)
		case v < 0:
			obs.Value = 0
		default:
			obs.Value = v
		}
	}

	obs.Coordinate, errs = parseCoordinate(field(ColLatitude), field(ColLongitude), row, errs)
	return obs, errs
}

// parseCoordinate returns nil unless both axes parse and lie within bounds.
// Missing axes are not reported; unparsable ones are.
func parseCoordinate(rawLat, rawLon string, row int, errs []*FieldError) (*Coordinate, []*FieldError) {
	if rawLat == "" && rawLon == "" {
		return nil, errs
	}
	lat, latErr := ParseLocaleFloat(rawLat)
	if latErr != nil && !errors.Is(latErr, errMissing) {
		errs = append(errs, &FieldError{Row: row, Column: ColLatitude, Raw: rawLat, Err: latErr})
	}
	lon, lonErr := ParseLocaleFloat(rawLon)
	if lonErr != nil && !errors.Is(lonErr, errMissing) {
		errs = append(errs, &FieldError{Row: row, Column: ColLongitude, Raw: rawLon, Err: lonErr})
	}
	if latErr != nil || lonErr != nil {
		return nil, errs
	}
	c := Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		errs = append(errs, &FieldError{
			Row: row, Column: "coordinate",
			Raw: fmt.Sprintf("%s,%s", rawLat, rawLon), Err: errOutOfBounds,
		})
		return nil, errs
	}
	return &c, errs
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

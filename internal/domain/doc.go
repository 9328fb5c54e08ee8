// Package domain models visitor-density telemetry: timestamped, geotagged
// pings counted by trackers installed at points of interest.
//
// # Data Source
//
// Pings arrive as a delimited text table, either a bundled export
// (POI_Full.csv) or the visitors endpoint queried with ?date=YYYY-MM-DD.
// The export is semicolon-delimited; ad-hoc extracts are sometimes
// comma-delimited. The delimiter is detected from the header row.
//
// # Column Conventions
//
//	installationId;timestamp;value;Ort;Name;TrackerID;TourdataID;ObjectGUID;Latitude;Longitude
//
// Optional weather columns (temperature_2m, relative_humidity_2m,
// precipitation, wind_speed_10m, cloud_cover_low/mid/high) are merged in by
// the hourly weather batch and carried through for tooltips.
//
// Coordinates use the Austrian/German locale, so the decimal separator is a
// comma: "47,9062383605987". Values are normalized to a period before
// parsing. A coordinate is kept only when both axes parse to finite numbers
// within WGS-84 bounds; a half-parsed pair is dropped entirely.
//
// Value is a people count. Missing or unparsable values count as 1 (one
// ping); negative values are clipped to 0.
//
// # Time Zones
//
// The export carries no zone designator. Timestamps are parsed in a
// configurable data zone and bucketed in a configurable view zone; both
// default to the process' local zone. When the two differ, hourly buckets
// shift by the offset between them.
//
// # Heat Synthesis
//
// The map's heat primitive renders every sample with the same radius and
// encodes density by sample multiplicity. [SynthesizeHeatPoints] therefore
// replicates each observation between [HeatConfig.MinSamples] and
// [HeatConfig.MaxSamples] times, scaled by value and by map zoom.
package domain

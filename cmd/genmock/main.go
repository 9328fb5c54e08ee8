// Command genmock writes a synthetic visitor feed in the same shape as the
// tracker export: ';'-delimited, comma decimal coordinates, local wall-clock
// timestamps without a zone. Output is deterministic for a given seed and is
// read back through the domain parser before it is written.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/visitors_generated.csv \
//	  -date 2025-01-01 -days 3 -rows 120 -seed 7
//
// With -kafka-brokers set, each generated day is also published to the feed
// topic as its own table.
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/visitor-density/internal/adapter/feed"
	"github.com/couchcryptid/visitor-density/internal/adapter/kafka"
	"github.com/couchcryptid/visitor-density/internal/domain"
)

const dayLayout = "2006-01-02"

// site is one counting installation around the Traunsee.
type site struct {
	installation string
	location     string
	name         string
	tracker      string
	tourData     string
	object       string
	lat, lon     float64
	// popularity scales the visitor count drawn for each ping.
	popularity float64
}

var sites = []site{
	{"inst-01", "Gmunden", "Seeschloss Ort", "TR-101", "TD-9001", "6f1c2a", 47.9062383605987, 13.5680551914288, 1.0},
	{"inst-02", "Hallstatt", "Marktplatz", "TR-202", "TD-9002", "8a4d11", 47.5622, 13.6493, 1.6},
	{"inst-03", "Bad Ischl", "Kaiservilla", "TR-303", "TD-9003", "c0ffee", 47.7115, 13.6239, 1.3},
	{"inst-04", "St. Wolfgang", "Schafbergbahn", "TR-404", "TD-9004", "beef01", 47.7393, 13.4476, 0.9},
	{"inst-05", "Traunkirchen", "Johannesberg", "TR-505", "TD-9005", "aa00bb", 47.8434, 13.7895, 0.6},
	{"inst-06", "Ebensee", "Feuerkogel", "TR-606", "TD-9006", "0dd5ee", 47.8131, 13.7206, 0.8},
}

// hourWeight shapes the daily curve: quiet at night, peaks late morning and
// mid afternoon.
var hourWeight = [24]float64{
	0.1, 0.05, 0.05, 0.05, 0.1, 0.3, 0.6, 1.0,
	1.6, 2.2, 2.8, 3.0, 2.6, 2.4, 2.9, 3.1,
	2.5, 1.8, 1.2, 0.8, 0.5, 0.3, 0.2, 0.1,
}

var header = []string{
	"installationId", "timestamp", "value", "Ort", "Name", "TrackerID", "TourdataID", "ObjectGUID",
	"Latitude", "Longitude", "temperature_2m", "relative_humidity_2m", "precipitation", "wind_speed_10m",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the generated CSV")
	date := flag.String("date", "", "first day to generate (YYYY-MM-DD, default today)")
	days := flag.Int("days", 1, "number of consecutive days")
	rows := flag.Int("rows", 40, "pings per day")
	seed := flag.Uint64("seed", 1, "random seed")
	blankEvery := flag.Int("blank-every", 15, "drop the coordinate of every n-th row (0 keeps all)")
	brokers := flag.String("kafka-brokers", "", "comma-separated brokers to publish day tables to (optional)")
	topic := flag.String("kafka-topic", "visitor-feed", "feed topic for -kafka-brokers")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *days < 1 || *rows < 1 {
		return fmt.Errorf("-days and -rows must be positive")
	}

	start := domain.Today(time.UTC)
	if *date != "" {
		d, err := time.Parse(dayLayout, *date)
		if err != nil {
			return fmt.Errorf("parse -date: %w", err)
		}
		start = d
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	records := generate(rng, start, *days, *rows, *blankEvery)

	data, err := encode(records)
	if err != nil {
		return err
	}

	// Timestamps carry no zone, so any location reads them back the same way.
	res, err := domain.Parse(data, time.UTC)
	if err != nil {
		return fmt.Errorf("generated feed does not parse: %w", err)
	}
	if len(res.Observations) != len(records) {
		return fmt.Errorf("parsed %d rows, generated %d", len(res.Observations), len(records))
	}
	if len(res.FieldErrors) != 0 {
		return fmt.Errorf("generated feed has %d field errors, first: %v", len(res.FieldErrors), res.FieldErrors[0])
	}

	if err := writeFile(*out, data); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	log.Printf("wrote %d rows over %d day(s) to %s", len(records), *days, *out)

	printStats(res.Observations, start, *days)

	if *brokers != "" {
		return publish(data, start, *days, strings.Split(*brokers, ","), *topic)
	}
	return nil
}

// publish slices the generated table per day and writes one message per day.
func publish(data []byte, start time.Time, days int, brokers []string, topic string) error {
	tables := make([]kafka.DayTable, 0, days)
	for d := range days {
		day := start.AddDate(0, 0, d)
		sliced, rows, err := feed.SliceByDate(data, day, time.UTC, time.UTC)
		if err != nil {
			return fmt.Errorf("slice %s: %w", day.Format(dayLayout), err)
		}
		tables = append(tables, kafka.DayTable{Day: day, Table: sliced, Rows: rows})
	}

	pub := kafka.NewPublisher(brokers, topic, slog.Default())
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return pub.Publish(ctx, tables)
}

func generate(rng *rand.Rand, start time.Time, days, perDay, blankEvery int) [][]string {
	records := make([][]string, 0, days*perDay)
	n := 0
	for d := range days {
		day := start.AddDate(0, 0, d)
		for range perDay {
			n++
			s := sites[rng.IntN(len(sites))]
			ts := day.Add(time.Duration(pickHour(rng))*time.Hour + time.Duration(rng.IntN(60))*time.Minute)
			value := int(float64(rng.IntN(12)+1) * s.popularity)

			lat, lon := formatCoord(s.lat), formatCoord(s.lon)
			if blankEvery > 0 && n%blankEvery == 0 {
				lat, lon = "", ""
			}

			records = append(records, []string{
				s.installation,
				ts.Format("2006-01-02T15:04:05"),
				strconv.Itoa(value),
				s.location,
				s.name,
				s.tracker,
				s.tourData,
				s.object,
				lat,
				lon,
				strconv.FormatFloat(-4+rng.Float64()*10, 'f', 1, 64),
				strconv.Itoa(65 + rng.IntN(30)),
				strconv.FormatFloat(rng.Float64()*1.5, 'f', 1, 64),
				strconv.FormatFloat(1+rng.Float64()*8, 'f', 1, 64),
			})
		}
	}
	return records
}

// pickHour draws an hour of day following hourWeight.
func pickHour(rng *rand.Rand) int {
	var total float64
	for _, w := range hourWeight {
		total += w
	}
	x := rng.Float64() * total
	for h, w := range hourWeight {
		if x < w {
			return h
		}
		x -= w
	}
	return 23
}

// formatCoord renders a coordinate the way the export does, with a decimal comma.
func formatCoord(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1)
}

func encode(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// printStats lists per-day hourly sums, handy for updating test assertions.
func printStats(obs []domain.Observation, start time.Time, days int) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total rows: %d, with coordinates: %d\n", len(obs), len(domain.WithCoordinates(obs)))
	for d := range days {
		day := start.AddDate(0, 0, d)
		visible := domain.FilterByDate(obs, &day, time.UTC)
		fmt.Printf("%s (%d rows):", day.Format(dayLayout), len(visible))
		for _, b := range domain.AggregateByHour(visible, time.UTC) {
			fmt.Printf(" %02d=%g", b.Hour, b.Metric)
		}
		fmt.Println()
	}
}

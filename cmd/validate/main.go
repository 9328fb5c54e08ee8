// Command validate runs integrity checks over a visitor feed file: it must
// parse, its hourly buckets must partition each day's total, the per-day
// CSV slices served by the feed endpoint must agree with the date filter,
// and the heat plan must stay inside the configured bounds.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -feed data/mock/visitors_250101.csv \
//	  -data-tz Europe/Vienna -view-tz Europe/Vienna
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/visitor-density/internal/adapter/feed"
	"github.com/couchcryptid/visitor-density/internal/domain"
)

const dayLayout = "2006-01-02"

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	feedPath string
	dataLoc  *time.Location
	viewLoc  *time.Location
	zoom     float64
	strict   bool
}

func main() {
	feedPath := flag.String("feed", "", "path to the visitor CSV")
	dataTZ := flag.String("data-tz", "Local", "zone of timestamps without an offset")
	viewTZ := flag.String("view-tz", "Local", "zone days and hours are grouped in")
	zoom := flag.Float64("zoom", domain.DefaultHeatConfig().BaseZoom, "map zoom for the heat plan check")
	strict := flag.Bool("strict", false, "treat field errors as failures")
	flag.Parse()

	if *feedPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	dataLoc, err := time.LoadLocation(*dataTZ)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: -data-tz: %v\n", err)
		os.Exit(1)
	}
	viewLoc, err := time.LoadLocation(*viewTZ)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: -view-tz: %v\n", err)
		os.Exit(1)
	}
	if err := domain.ValidateZoom(*zoom); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: -zoom: %v\n", err)
		os.Exit(1)
	}

	if code := run(options{
		feedPath: *feedPath,
		dataLoc:  dataLoc,
		viewLoc:  viewLoc,
		zoom:     *zoom,
		strict:   *strict,
	}); code != 0 {
		os.Exit(code)
	}
}

func run(opts options) int {
	fmt.Println("=== Visitor Feed Integrity Validation ===")
	fmt.Println()

	raw, err := os.ReadFile(opts.feedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read feed: %v\n", err)
		return 1
	}

	res, err := domain.Parse(raw, opts.dataLoc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse feed: %v\n", err)
		return 1
	}
	days := distinctDays(res.Observations, opts.viewLoc)

	// ── Run validation phases ──
	phases := []*phase{
		validateFields(res, opts.strict),
		validateHourPartition(res.Observations, days, opts.viewLoc),
		validateSliceParity(raw, res.Observations, days, opts),
		validateHeatPlan(res.Observations, days, opts),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d, located: %d, field errors: %d, delimiter: %q\n",
		len(res.Observations), len(domain.WithCoordinates(res.Observations)), len(res.FieldErrors), res.Delimiter)
	printDays(res.Observations, days, opts.viewLoc)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// distinctDays returns the start of every calendar day in loc that has at
// least one timestamped row, ascending.
func distinctDays(obs []domain.Observation, loc *time.Location) []time.Time {
	seen := map[string]time.Time{}
	for _, o := range obs {
		if !o.HasTimestamp() {
			continue
		}
		d := domain.StartOfDay(o.Timestamp, loc)
		seen[d.Format(dayLayout)] = d
	}
	days := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// ── Phase 1: Fields ──
// Field errors are recovered by the parser. They are listed per column and
// only fail the run in strict mode.

func validateFields(res domain.ParseResult, strict bool) *phase {
	p := &phase{name: "Phase 1: Field Coercion"}

	byColumn := map[string]int{}
	for _, fe := range res.FieldErrors {
		byColumn[fe.Column]++
	}
	cols := make([]string, 0, len(byColumn))
	for c := range byColumn {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		fmt.Printf("  field errors in %-24s %d\n", c, byColumn[c])
	}

	if strict {
		for _, fe := range res.FieldErrors {
			p.errorf("%v", fe)
		}
	}
	for i, o := range res.Observations {
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			p.errorf("row %d: value %v is not finite after parsing", i+1, o.Value)
		}
	}
	return p
}

// ── Phase 2: Hour Partition ──
// The hourly buckets of a day must add up to the day's total, and every
// bucket must be a distinct hour in ascending order.

func validateHourPartition(obs []domain.Observation, days []time.Time, loc *time.Location) *phase {
	p := &phase{name: "Phase 2: Hourly Buckets Partition Days"}

	for _, day := range days {
		visible := domain.FilterByDate(obs, &day, loc)
		var want float64
		for _, o := range visible {
			want += o.Value
		}

		buckets := domain.AggregateByHour(visible, loc)
		var got float64
		prev := -1
		for _, b := range buckets {
			if b.Hour < 0 || b.Hour > 23 {
				p.errorf("%s: bucket hour %d out of range", day.Format(dayLayout), b.Hour)
			}
			if b.Hour <= prev {
				p.errorf("%s: bucket hour %d not ascending after %d", day.Format(dayLayout), b.Hour, prev)
			}
			prev = b.Hour
			got += b.Metric
		}
		if math.Abs(got-want) > 1e-9 {
			p.errorf("%s: buckets sum to %g, rows sum to %g", day.Format(dayLayout), got, want)
		}

		counts := domain.AggregateByHourWith(visible, loc, domain.MetricCount)
		var n float64
		for _, b := range counts {
			n += b.Metric
		}
		if int(n) != len(visible) {
			p.errorf("%s: count buckets hold %d rows, filter kept %d", day.Format(dayLayout), int(n), len(visible))
		}
	}
	return p
}

// ── Phase 3: Slice Parity ──
// The feed endpoint slices the raw table by day. It must keep exactly the
// rows the date filter keeps.

func validateSliceParity(raw []byte, obs []domain.Observation, days []time.Time, opts options) *phase {
	p := &phase{name: "Phase 3: Feed Slice Parity"}

	total := 0
	for _, day := range days {
		sliced, rows, err := feed.SliceByDate(raw, day, opts.dataLoc, opts.viewLoc)
		if err != nil {
			p.errorf("%s: slice: %v", day.Format(dayLayout), err)
			continue
		}
		want := len(domain.FilterByDate(obs, &day, opts.viewLoc))
		if rows != want {
			p.errorf("%s: slice kept %d rows, filter kept %d", day.Format(dayLayout), rows, want)
		}
		total += rows

		res, err := domain.Parse(sliced, opts.dataLoc)
		if err != nil {
			p.errorf("%s: sliced table does not parse: %v", day.Format(dayLayout), err)
			continue
		}
		if len(res.Observations) != rows {
			p.errorf("%s: sliced table parses to %d rows, reported %d", day.Format(dayLayout), len(res.Observations), rows)
		}
	}

	timestamped := 0
	for _, o := range obs {
		if o.HasTimestamp() {
			timestamped++
		}
	}
	if total != timestamped {
		p.errorf("slices cover %d rows, %d rows carry a timestamp", total, timestamped)
	}
	return p
}

// ── Phase 4: Heat Plan ──

func validateHeatPlan(obs []domain.Observation, days []time.Time, opts options) *phase {
	p := &phase{name: "Phase 4: Heat Plan Bounds"}
	cfg := domain.DefaultHeatConfig()

	for _, day := range days {
		visible := domain.FilterByDate(obs, &day, opts.viewLoc)
		plan := domain.Plan(visible, opts.zoom, cfg)
		if len(plan) != len(domain.WithCoordinates(visible)) {
			p.errorf("%s: plan has %d points for %d located rows", day.Format(dayLayout), len(plan), len(domain.WithCoordinates(visible)))
		}

		want := 0
		for i, hp := range plan {
			if hp.Replication < cfg.MinSamples || hp.Replication > cfg.MaxSamples {
				p.errorf("%s: point %d replication %d outside [%d, %d]", day.Format(dayLayout), i, hp.Replication, cfg.MinSamples, cfg.MaxSamples)
			}
			if hp.Intensity < cfg.MinIntensity || hp.Intensity > cfg.MaxIntensity {
				p.errorf("%s: point %d intensity %g outside [%g, %g]", day.Format(dayLayout), i, hp.Intensity, cfg.MinIntensity, cfg.MaxIntensity)
			}
			want += hp.Replication
		}

		if got := len(domain.SynthesizeHeatPoints(visible, opts.zoom, cfg)); got != want {
			p.errorf("%s: %d samples synthesized, plan asks for %d", day.Format(dayLayout), got, want)
		}
	}
	return p
}

func printDays(obs []domain.Observation, days []time.Time, loc *time.Location) {
	for _, day := range days {
		visible := domain.FilterByDate(obs, &day, loc)
		fmt.Printf("%s (%d rows):", day.Format(dayLayout), len(visible))
		for _, b := range domain.AggregateByHour(visible, loc) {
			fmt.Printf(" %02d=%g", b.Hour, b.Metric)
		}
		fmt.Println()
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/visitor-density/internal/domain"
	"github.com/couchcryptid/visitor-density/internal/observability"
)

// Source fetches the raw visitor table for a day. A zero day asks for the
// source's default extent.
type Source interface {
	Fetch(ctx context.Context, day time.Time) ([]byte, error)
}

// BarRenderer draws the hourly bar chart.
type BarRenderer interface {
	RenderBars(chart domain.BarChart) error
}

// HeatRenderer installs and removes heat layers. Every handle returned by
// RenderHeatLayer must be passed to ReleaseLayer exactly once.
type HeatRenderer interface {
	RenderHeatLayer(samples []domain.HeatSample) (domain.LayerHandle, error)
	ReleaseLayer(h domain.LayerHandle) error
}

// TooltipPresenter shows the tooltip for a map click.
type TooltipPresenter interface {
	ShowTooltip(at domain.Coordinate, content domain.TooltipContent)
}

// Renderers groups the render collaborators.
type Renderers struct {
	Bars    BarRenderer
	Heat    HeatRenderer
	Tooltip TooltipPresenter
}

// Options configures a Pipeline.
type Options struct {
	// ViewLocation is the zone days and hours are shown in.
	ViewLocation *time.Location
	Heat         domain.HeatConfig
	InitialDate  *time.Time
}

// ViewState is a copy of the current selection.
type ViewState struct {
	SelectedDate *time.Time `json:"selected_date,omitempty"`
	SelectedHour *int       `json:"selected_hour,omitempty"`
	Highlighted  *int       `json:"highlighted_hour,omitempty"`
	Zoom         float64    `json:"zoom"`
	Observations int        `json:"observations"`
	Visible      int        `json:"visible"`
}

// Pipeline runs the filter cycle for one viewer: fetch, parse, filter by
// date, then aggregate into bars and synthesize the heat layer. All state
// changes are serialized; fetches run outside the lock and only the latest
// one may install its result.
type Pipeline struct {
	source    Source
	decoder   *Decoder
	renderers Renderers
	logger    *slog.Logger
	metrics   *observability.Metrics
	loc       *time.Location
	heatCfg   domain.HeatConfig

	mu           sync.Mutex
	observations []domain.Observation
	selectedDate *time.Time
	selectedHour *int
	zoom         float64
	layer        domain.LayerHandle
	generation   uint64

	ready atomic.Bool
}

// New creates a Pipeline. Nothing is fetched until Load is called.
func New(source Source, decoder *Decoder, r Renderers, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	loc := opts.ViewLocation
	if loc == nil {
		loc = time.Local
	}
	p := &Pipeline{
		source:       source,
		decoder:      decoder,
		renderers:    r,
		logger:       logger,
		metrics:      metrics,
		loc:          loc,
		heatCfg:      opts.Heat,
		observations: []domain.Observation{},
		zoom:         opts.Heat.BaseZoom,
	}
	if opts.InitialDate != nil {
		d := opts.InitialDate.In(loc)
		p.selectedDate = &d
	}
	return p
}

// CheckReadiness returns nil once a feed has been loaded and rendered.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no visitor data loaded yet")
	}
	return nil
}

// Run performs the initial load, retrying with exponential backoff until it
// succeeds or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	// Start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		err := p.Load(ctx)
		if err == nil {
			state := p.State()
			p.logger.Info("initial view rendered", "observations", state.Observations, "visible", state.Visible)
			return nil
		}
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
		p.logger.Warn("initial load failed, retrying", "backoff", backoff, "error", err)
		if !sleepWithContext(ctx, backoff) {
			return nil
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

// Load fetches the feed for the selected date and re-renders. On a fetch or
// format error the previous observations and rendering are kept. A result
// superseded by a later Load is discarded and nil is returned.
func (p *Pipeline) Load(ctx context.Context) error {
	return p.load(ctx, nil)
}

// dateChange is a requested selection that is committed only with its feed.
type dateChange struct {
	date *time.Time
}

// SelectDate reloads the feed for date (nil clears it) and drops any
// selected hour. The selection only changes once the new day's feed is
// installed; when the fetch fails the previous date, hour and view stay.
func (p *Pipeline) SelectDate(ctx context.Context, date *time.Time) error {
	change := &dateChange{}
	if date != nil {
		d := date.In(p.loc)
		change.date = &d
	}
	return p.load(ctx, change)
}

// load fetches the feed for the pending date change, or the current
// selection when change is nil, and installs it if no later load started.
func (p *Pipeline) load(ctx context.Context, change *dateChange) error {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	date := copyTime(p.selectedDate)
	if change != nil {
		date = change.date
	}
	p.mu.Unlock()

	var day time.Time
	if date != nil {
		day = *date
	}

	raw, err := p.source.Fetch(ctx, day)
	if err != nil {
		if !domain.IsNetworkError(err) {
			err = &domain.NetworkError{Op: "fetch visitors", Err: err}
		}
		p.logger.Error("feed fetch failed, keeping previous view", "error", err)
		return err
	}

	obs, err := p.decoder.Decode(raw)
	if err != nil {
		p.logger.Error("feed rejected, keeping previous view", "error", err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		p.metrics.StaleResponses.Inc()
		p.logger.Debug("discarding superseded feed response", "generation", gen, "latest", p.generation)
		return nil
	}
	if change != nil {
		p.selectedDate = change.date
		p.selectedHour = nil
	}
	p.observations = obs
	p.metrics.ObservationsHeld.Set(float64(len(obs)))
	if err := p.refreshLocked(); err != nil {
		return err
	}
	p.ready.Store(true)
	return nil
}

// ToggleHour selects hour, or clears the selection when hour is already
// selected. Highlighting does not filter; bars and heat samples are redrawn
// with the new hour marked.
func (p *Pipeline) ToggleHour(hour int) (*int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, err := domain.ToggleHour(p.selectedHour, hour)
	if err != nil {
		return p.selectedHour, err
	}
	p.selectedHour = next

	visible := domain.FilterByDate(p.observations, p.selectedDate, p.loc)
	if err := p.renderBarsLocked(visible); err != nil {
		return next, err
	}
	if err := p.renderHeatLocked(visible); err != nil {
		return next, err
	}
	return next, nil
}

// SetZoom records the map zoom and rebuilds the heat layer. A zoom outside
// domain.MinZoom..domain.MaxZoom is rejected and the view is left as is.
func (p *Pipeline) SetZoom(zoom float64) error {
	if err := domain.ValidateZoom(zoom); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.zoom = zoom
	visible := domain.FilterByDate(p.observations, p.selectedDate, p.loc)
	return p.renderHeatLocked(visible)
}

// Tooltip finds the observation nearest to at for the selected date and the
// given time of day ("HH:MM", empty for the date's own time) and shows it.
// Without a selected date the current day is used.
func (p *Pipeline) Tooltip(at domain.Coordinate, clockOfDay string) (domain.TooltipContent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	base := domain.Clock().Now()
	if p.selectedDate != nil {
		base = *p.selectedDate
	}
	asOf, err := domain.ComposeInstant(base, clockOfDay, p.loc)
	if err != nil {
		return domain.TooltipContent{}, err
	}

	content := domain.BuildTooltip(p.observations, at, asOf)
	if p.renderers.Tooltip != nil {
		p.renderers.Tooltip.ShowTooltip(at, content)
	}
	return content, nil
}

// State returns a copy of the current selection.
func (p *Pipeline) State() ViewState {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := ViewState{
		SelectedHour: copyInt(p.selectedHour),
		Highlighted:  domain.HighlightedHour(p.selectedHour, p.selectedDate, p.loc),
		Zoom:         p.zoom,
		Observations: len(p.observations),
		Visible:      len(domain.FilterByDate(p.observations, p.selectedDate, p.loc)),
	}
	s.SelectedDate = copyTime(p.selectedDate)
	return s
}

// Observations returns the currently held observations.
func (p *Pipeline) Observations() []domain.Observation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Observation(nil), p.observations...)
}

// Close releases the installed heat layer.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready.Store(false)
	return p.releaseLayerLocked()
}

func (p *Pipeline) refreshLocked() error {
	start := time.Now()
	defer func() {
		p.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	}()

	visible := domain.FilterByDate(p.observations, p.selectedDate, p.loc)
	if len(visible) == 0 {
		p.metrics.EmptyResults.Inc()
	}

	if err := p.renderBarsLocked(visible); err != nil {
		return err
	}
	if err := p.renderHeatLocked(visible); err != nil {
		return err
	}

	p.logger.Debug("view refreshed",
		"observations", len(p.observations),
		"visible", len(visible),
		"zoom", p.zoom,
	)
	return nil
}

func (p *Pipeline) renderBarsLocked(visible []domain.Observation) error {
	highlighted := domain.HighlightedHour(p.selectedHour, p.selectedDate, p.loc)
	chart := domain.BuildBarChart(visible, highlighted, p.loc)
	if err := p.renderers.Bars.RenderBars(chart); err != nil {
		return fmt.Errorf("render bars: %w", err)
	}
	return nil
}

// renderHeatLocked releases the current layer before installing the next so
// at most one layer is ever live. When the release fails the current layer
// stays installed and tracked.
func (p *Pipeline) renderHeatLocked(visible []domain.Observation) error {
	if err := p.releaseLayerLocked(); err != nil {
		p.logger.Warn("release heat layer failed", "layer", p.layer, "error", err)
		return err
	}

	highlighted := domain.HighlightedHour(p.selectedHour, p.selectedDate, p.loc)
	samples := domain.SynthesizeHighlighted(visible, p.zoom, highlighted, p.loc, p.heatCfg)
	p.metrics.HeatSamples.Set(float64(len(samples)))
	if len(samples) == 0 {
		return nil
	}

	h, err := p.renderers.Heat.RenderHeatLayer(samples)
	if err != nil {
		return fmt.Errorf("render heat layer: %w", err)
	}
	p.layer = h
	p.metrics.HeatLayersLive.Inc()
	return nil
}

func (p *Pipeline) releaseLayerLocked() error {
	if p.layer == "" {
		return nil
	}
	if err := p.renderers.Heat.ReleaseLayer(p.layer); err != nil {
		return fmt.Errorf("release heat layer: %w", err)
	}
	p.layer = ""
	p.metrics.HeatLayersLive.Dec()
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := domain.Clock().NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

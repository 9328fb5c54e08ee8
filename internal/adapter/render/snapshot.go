// Package render holds the in-memory renderer the view pipeline draws into.
// The HTTP view API reads the latest bar chart, heat layer and tooltip back
// out of it for the browser frontend.
package render

import (
	"errors"
	"fmt"
	"sync"

	"github.com/couchcryptid/visitor-density/internal/domain"
	"github.com/google/uuid"
)

// ErrUnknownLayer is returned when releasing a handle that is not live.
var ErrUnknownLayer = errors.New("unknown heat layer")

// HeatLayer is a live heat layer.
type HeatLayer struct {
	Handle  domain.LayerHandle  `json:"handle"`
	Samples []domain.HeatSample `json:"samples"`
}

// Tooltip is the last tooltip shown on the map.
type Tooltip struct {
	At      domain.Coordinate     `json:"at"`
	Content domain.TooltipContent `json:"content"`
}

// Snapshot keeps the most recent output of each render contract. It is
// safe for concurrent use.
type Snapshot struct {
	mu      sync.RWMutex
	bars    domain.BarChart
	layers  map[domain.LayerHandle][]domain.HeatSample
	current domain.LayerHandle
	tooltip *Tooltip
}

// NewSnapshot creates an empty renderer with no live layers.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		bars:   domain.BarChart{Buckets: []domain.HourBucket{}},
		layers: make(map[domain.LayerHandle][]domain.HeatSample),
	}
}

// RenderBars replaces the displayed bar chart.
func (s *Snapshot) RenderBars(chart domain.BarChart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars = chart
	return nil
}

// RenderHeatLayer installs a heat layer and returns its handle. The caller
// owns the handle and must release it.
func (s *Snapshot) RenderHeatLayer(samples []domain.HeatSample) (domain.LayerHandle, error) {
	h := domain.LayerHandle(uuid.NewString())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers[h] = samples
	s.current = h
	return h, nil
}

// ReleaseLayer removes a layer. Releasing an unknown handle is an error.
func (s *Snapshot) ReleaseLayer(h domain.LayerHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.layers[h]; !ok {
		return fmt.Errorf("release %s: %w", h, ErrUnknownLayer)
	}
	delete(s.layers, h)
	if s.current == h {
		s.current = ""
	}
	return nil
}

// ShowTooltip records the tooltip for the clicked coordinate.
func (s *Snapshot) ShowTooltip(at domain.Coordinate, content domain.TooltipContent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tooltip = &Tooltip{At: at, Content: content}
}

// Bars returns the displayed bar chart.
func (s *Snapshot) Bars() domain.BarChart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bars
}

// Heat returns the most recently installed layer, if it is still live.
func (s *Snapshot) Heat() (HeatLayer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	samples, ok := s.layers[s.current]
	if !ok {
		return HeatLayer{}, false
	}
	return HeatLayer{Handle: s.current, Samples: samples}, true
}

// Tooltip returns the last tooltip shown.
func (s *Snapshot) Tooltip() (Tooltip, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tooltip == nil {
		return Tooltip{}, false
	}
	return *s.tooltip, true
}

// LiveLayers reports how many layers are installed and not yet released.
func (s *Snapshot) LiveLayers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.layers)
}

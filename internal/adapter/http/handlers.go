package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/visitor-density/internal/adapter/feed"
	"github.com/couchcryptid/visitor-density/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

const dateLayout = "2006-01-02"

type selectDateRequest struct {
	Date string `json:"date"`
}

type zoomRequest struct {
	Zoom *float64 `json:"zoom"`
}

type toggleResponse struct {
	SelectedHour *int            `json:"selected_hour"`
	Bars         domain.BarChart `json:"bars"`
}

type heatResponse struct {
	Handle  domain.LayerHandle  `json:"handle"`
	Samples []domain.HeatSample `json:"samples"`
}

// handleVisitors serves one day of the bundled table as text/csv.
func (s *Server) handleVisitors(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing parameter: date"})
		return
	}
	day, err := time.ParseInLocation(dateLayout, raw, s.viewLoc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, expected YYYY-MM-DD"})
		return
	}

	table, err := s.feed.Fetch(r.Context(), day)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out, rows, err := feed.SliceByDate(table, day, s.dataLoc, s.viewLoc)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("X-Row-Count", strconv.Itoa(rows))
	w.WriteHeader(http.StatusOK)
	w.Write(out) //nolint:errcheck // client may have gone away
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view.State())
}

// handleSelectDate accepts {"date":"2025-01-01"} or a date with a time of
// day; an empty string clears the selection.
func (s *Server) handleSelectDate(w http.ResponseWriter, r *http.Request) {
	var req selectDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var date *time.Time
	if v := strings.TrimSpace(req.Date); v != "" {
		d, err := domain.ParseTimestamp(v, s.viewLoc)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date: " + v})
			return
		}
		date = &d
	}

	if err := s.view.SelectDate(r.Context(), date); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view.State())
}

func (s *Server) handleToggleHour(w http.ResponseWriter, r *http.Request) {
	hour, err := strconv.Atoi(chi.URLParam(r, "hour"))
	if err != nil {
		s.writeError(w, domain.ErrInvalidHour)
		return
	}
	selected, err := s.view.ToggleHour(hour)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{SelectedHour: selected, Bars: s.display.Bars()})
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Zoom == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {\"zoom\": <number>}"})
		return
	}
	if err := s.view.SetZoom(*req.Zoom); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view.State())
}

func (s *Server) handleBars(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.display.Bars())
}

func (s *Server) handleHeat(w http.ResponseWriter, _ *http.Request) {
	layer, ok := s.display.Heat()
	if !ok {
		writeJSON(w, http.StatusOK, heatResponse{Samples: []domain.HeatSample{}})
		return
	}
	writeJSON(w, http.StatusOK, heatResponse{Handle: layer.Handle, Samples: layer.Samples})
}

// handleTooltip answers a map click: ?lat=&lon=&time=HH:MM.
func (s *Server) handleTooltip(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, latErr := domain.ParseLocaleFloat(q.Get("lat"))
	lon, lonErr := domain.ParseLocaleFloat(q.Get("lon"))
	at := domain.Coordinate{Lat: lat, Lon: lon}
	if latErr != nil || lonErr != nil || !at.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lon must be valid coordinates"})
		return
	}

	content, err := s.view.Tooltip(at, q.Get("time"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, content)
}

// writeError maps pipeline errors to status codes. Fetch and format
// failures leave the previous view in place.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidHour), errors.Is(err, domain.ErrInvalidZoom):
		status = http.StatusBadRequest
	case domain.IsFormatError(err):
		status = http.StatusUnprocessableEntity
	case domain.IsNetworkError(err):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err, "status", status)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

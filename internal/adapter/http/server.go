package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/visitor-density/internal/adapter/render"
	"github.com/couchcryptid/visitor-density/internal/domain"
	"github.com/couchcryptid/visitor-density/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// View is the viewer session the API drives.
type View interface {
	SelectDate(ctx context.Context, date *time.Time) error
	ToggleHour(hour int) (*int, error)
	SetZoom(zoom float64) error
	Tooltip(at domain.Coordinate, clockOfDay string) (domain.TooltipContent, error)
	State() pipeline.ViewState
}

// Display reads back what was last rendered.
type Display interface {
	Bars() domain.BarChart
	Heat() (render.HeatLayer, bool)
}

// FeedTable supplies the bundled visitor table the feed endpoint slices.
type FeedTable interface {
	Fetch(ctx context.Context, day time.Time) ([]byte, error)
}

// Options configures the HTTP server.
type Options struct {
	Addr               string
	CORSAllowedOrigins []string
	// RateLimit is requests per minute per client IP on /api. Zero disables it.
	RateLimit int
	// Feed enables GET /api/v1/visitors when set.
	Feed         FeedTable
	DataLocation *time.Location
	ViewLocation *time.Location
}

// Server exposes health, readiness, metrics, the visitor feed, and the view API.
type Server struct {
	httpServer *http.Server
	view       View
	display    Display
	feed       FeedTable
	dataLoc    *time.Location
	viewLoc    *time.Location
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the /api/v1 routes.
func NewServer(opts Options, ready sharedobs.ReadinessChecker, view View, display Display, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		view:    view,
		display: display,
		feed:    opts.Feed,
		dataLoc: orLocal(opts.DataLocation),
		viewLoc: orLocal(opts.ViewLocation),
		logger:  logger,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Row-Count"},
			MaxAge:         300,
		}))
		if opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
		}

		if s.feed != nil {
			r.Get("/visitors", s.handleVisitors)
		}
		r.Route("/view", func(r chi.Router) {
			r.Get("/", s.handleState)
			r.Put("/date", s.handleSelectDate)
			r.Post("/hours/{hour}/toggle", s.handleToggleHour)
			r.Put("/zoom", s.handleZoom)
			r.Get("/bars", s.handleBars)
			r.Get("/heat", s.handleHeat)
			r.Get("/tooltip", s.handleTooltip)
		})
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// writeJSON encodes API bodies with go-json; health checks use the shared
// handlers.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

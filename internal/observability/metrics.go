package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "visitor_density"

// Metrics holds the Prometheus counters, histograms, and gauges for the view pipeline.
type Metrics struct {
	RowsParsed       prometheus.Counter
	FieldErrors      *prometheus.CounterVec // labels: column
	FormatErrors     prometheus.Counter
	ObservationsHeld prometheus.Gauge

	// Fetch metrics.
	FetchRequests  *prometheus.CounterVec // labels: outcome={success,error,rejected}
	FetchDuration  prometheus.Histogram
	FetchCache     *prometheus.CounterVec // labels: result={hit,miss}
	StaleResponses prometheus.Counter
	FeedMessages   *prometheus.CounterVec // labels: result={stored,skipped}

	// Render metrics.
	RefreshDuration prometheus.Histogram
	HeatSamples     prometheus.Gauge
	HeatLayersLive  prometheus.Gauge
	EmptyResults    prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RowsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_parsed_total",
			Help:      "Total data rows turned into observations.",
		}),
		FieldErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_errors_total",
			Help:      "Fields that failed coercion and were treated as absent, by column.",
		}, []string{"column"}),
		FormatErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "format_errors_total",
			Help:      "Fetched payloads rejected as malformed tables.",
		}),
		ObservationsHeld: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observations_held",
			Help:      "Observations held for the current filter cycle.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Visitor feed fetches by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a visitor feed fetch including retries.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		FetchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_cache_total",
			Help:      "Feed cache lookups by result.",
		}, []string{"result"}),
		StaleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Fetch responses discarded because a newer fetch was issued.",
		}),
		FeedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_messages_total",
			Help:      "Day tables consumed from the feed topic by result.",
		}, []string{"result"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of one filter/aggregate/synthesize/render cycle.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		HeatSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heat_samples",
			Help:      "Samples in the installed heat layer.",
		}),
		HeatLayersLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heat_layers_live",
			Help:      "Heat layers acquired and not yet released.",
		}),
		EmptyResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_results_total",
			Help:      "Refreshes whose date filter matched no observations.",
		}),
	}

	prometheus.MustRegister(
		m.RowsParsed,
		m.FieldErrors,
		m.FormatErrors,
		m.ObservationsHeld,
		m.FetchRequests,
		m.FetchDuration,
		m.FetchCache,
		m.StaleResponses,
		m.FeedMessages,
		m.RefreshDuration,
		m.HeatSamples,
		m.HeatLayersLive,
		m.EmptyResults,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RowsParsed:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "rows_parsed_total"}),
		FieldErrors:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "field_errors_total"}, []string{"column"}),
		FormatErrors:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "format_errors_total"}),
		ObservationsHeld: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "observations_held"}),
		FetchRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "fetch_requests_total"}, []string{"outcome"}),
		FetchDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "fetch_duration_seconds"}),
		FetchCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "fetch_cache_total"}, []string{"result"}),
		StaleResponses:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "stale_responses_total"}),
		FeedMessages:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "feed_messages_total"}, []string{"result"}),
		RefreshDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "refresh_duration_seconds"}),
		HeatSamples:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "heat_samples"}),
		HeatLayersLive:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "heat_layers_live"}),
		EmptyResults:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "empty_results_total"}),
	}
}

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/visitor-density/internal/domain"
)

// Feed source kinds.
const (
	FeedSourceFile  = "file"
	FeedSourceHTTP  = "http"
	FeedSourceKafka = "kafka"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Visitor feed configuration.
	FeedSource     string
	FeedFile       string
	FeedURL        string
	FeedTimeout    time.Duration
	FeedMaxRetries int
	FeedCacheSize  int
	FeedCacheTTL   time.Duration

	// Kafka feed configuration, used when FeedSource is kafka.
	KafkaBrokers []string
	KafkaTopic   string

	// DataLocation is the zone naive feed timestamps are written in.
	// ViewLocation is the zone the calendar and the hour axis are shown in.
	DataLocation *time.Location
	ViewLocation *time.Location

	Heat domain.HeatConfig

	CORSAllowedOrigins []string
	// APIRateLimit is requests per minute per client IP on /api routes. Zero disables limiting.
	APIRateLimit int

	// InitialDate preselects a day on startup. Nil shows everything.
	InitialDate *time.Time
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	feedTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FEED_TIMEOUT", "5s"))
	if err != nil || feedTimeout <= 0 {
		return nil, errors.New("invalid FEED_TIMEOUT")
	}

	maxRetries, err := parseInt("FEED_MAX_RETRIES", 3, 0)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("FEED_CACHE_SIZE", 32, 1)
	if err != nil {
		return nil, err
	}

	cacheTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("FEED_CACHE_TTL", "1m"))
	if err != nil || cacheTTL < 0 {
		return nil, errors.New("invalid FEED_CACHE_TTL")
	}

	dataLoc, err := parseLocation("DATA_TIMEZONE")
	if err != nil {
		return nil, err
	}
	viewLoc, err := parseLocation("VIEW_TIMEZONE")
	if err != nil {
		return nil, err
	}

	heat := domain.DefaultHeatConfig()
	if heat.MinSamples, err = parseInt("HEAT_MIN_SAMPLES", heat.MinSamples, 1); err != nil {
		return nil, err
	}
	if heat.MaxSamples, err = parseInt("HEAT_MAX_SAMPLES", heat.MaxSamples, 1); err != nil {
		return nil, err
	}
	rateLimit, err := parseInt("API_RATE_LIMIT", 300, 0)
	if err != nil {
		return nil, err
	}
	if s := sharedcfg.EnvOrDefault("HEAT_BASE_ZOOM", ""); s != "" {
		z, perr := strconv.ParseFloat(s, 64)
		if perr != nil {
			return nil, errors.New("invalid HEAT_BASE_ZOOM")
		}
		heat.BaseZoom = z
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FeedSource:     strings.ToLower(sharedcfg.EnvOrDefault("FEED_SOURCE", FeedSourceFile)),
		FeedFile:       sharedcfg.EnvOrDefault("FEED_FILE", "data/mock/visitors_250101.csv"),
		FeedURL:        sharedcfg.EnvOrDefault("FEED_URL", ""),
		FeedTimeout:    feedTimeout,
		FeedMaxRetries: maxRetries,
		FeedCacheSize:  cacheSize,
		FeedCacheTTL:   cacheTTL,

		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "visitor-feed"),

		DataLocation: dataLoc,
		ViewLocation: viewLoc,
		Heat:         heat,

		CORSAllowedOrigins: splitList(sharedcfg.EnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		APIRateLimit:       rateLimit,
	}

	if s := sharedcfg.EnvOrDefault("INITIAL_DATE", ""); s != "" {
		d, perr := domain.ParseTimestamp(s, viewLoc)
		if perr != nil {
			return nil, fmt.Errorf("invalid INITIAL_DATE: %w", perr)
		}
		cfg.InitialDate = &d
	}

	switch cfg.FeedSource {
	case FeedSourceFile:
		if cfg.FeedFile == "" {
			return nil, errors.New("FEED_FILE is required when FEED_SOURCE=file")
		}
	case FeedSourceHTTP:
		if cfg.FeedURL == "" {
			return nil, errors.New("FEED_URL is required when FEED_SOURCE=http")
		}
	case FeedSourceKafka:
		if len(cfg.KafkaBrokers) == 0 || cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_BROKERS and KAFKA_TOPIC are required when FEED_SOURCE=kafka")
		}
	default:
		return nil, fmt.Errorf("invalid FEED_SOURCE %q: must be file, http or kafka", cfg.FeedSource)
	}
	if cfg.Heat.MinSamples > cfg.Heat.MaxSamples {
		return nil, errors.New("HEAT_MIN_SAMPLES must not exceed HEAT_MAX_SAMPLES")
	}

	return cfg, nil
}

func parseInt(key string, def, minimum int) (int, error) {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}

// parseLocation resolves an IANA zone name. Empty or "Local" selects the
// host zone.
func parseLocation(key string) (*time.Location, error) {
	name := sharedcfg.EnvOrDefault(key, "Local")
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return loc, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

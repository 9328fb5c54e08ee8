package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFeedURL = "http://feed.test/api/v1/visitors"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, FeedSourceFile, cfg.FeedSource)
	assert.Equal(t, "data/mock/visitors_250101.csv", cfg.FeedFile)
	assert.Empty(t, cfg.FeedURL)
	assert.Equal(t, 5*time.Second, cfg.FeedTimeout)
	assert.Equal(t, 3, cfg.FeedMaxRetries)
	assert.Equal(t, 32, cfg.FeedCacheSize)
	assert.Equal(t, time.Minute, cfg.FeedCacheTTL)
	assert.Equal(t, time.Local, cfg.DataLocation)
	assert.Equal(t, time.Local, cfg.ViewLocation)
	assert.Equal(t, 15, cfg.Heat.MinSamples)
	assert.Equal(t, 50, cfg.Heat.MaxSamples)
	assert.InDelta(t, 7.5, cfg.Heat.BaseZoom, 1e-9)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 300, cfg.APIRateLimit)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "visitor-feed", cfg.KafkaTopic)
	assert.Nil(t, cfg.InitialDate)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("FEED_SOURCE", "HTTP")
	t.Setenv("FEED_URL", testFeedURL)
	t.Setenv("FEED_TIMEOUT", "2s")
	t.Setenv("FEED_MAX_RETRIES", "0")
	t.Setenv("FEED_CACHE_SIZE", "8")
	t.Setenv("FEED_CACHE_TTL", "0s")
	t.Setenv("DATA_TIMEZONE", "Europe/Vienna")
	t.Setenv("VIEW_TIMEZONE", "UTC")
	t.Setenv("HEAT_MIN_SAMPLES", "10")
	t.Setenv("HEAT_MAX_SAMPLES", "40")
	t.Setenv("HEAT_BASE_ZOOM", "9")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, https://map.example.org")
	t.Setenv("INITIAL_DATE", "2025-01-01")
	t.Setenv("API_RATE_LIMIT", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, FeedSourceHTTP, cfg.FeedSource)
	assert.Equal(t, testFeedURL, cfg.FeedURL)
	assert.Equal(t, 2*time.Second, cfg.FeedTimeout)
	assert.Equal(t, 0, cfg.FeedMaxRetries)
	assert.Equal(t, 8, cfg.FeedCacheSize)
	assert.Zero(t, cfg.FeedCacheTTL)
	assert.Equal(t, "Europe/Vienna", cfg.DataLocation.String())
	assert.Equal(t, "UTC", cfg.ViewLocation.String())
	assert.Equal(t, 10, cfg.Heat.MinSamples)
	assert.Equal(t, 40, cfg.Heat.MaxSamples)
	assert.InDelta(t, 9.0, cfg.Heat.BaseZoom, 1e-9)
	assert.Equal(t, []string{"http://localhost:3000", "https://map.example.org"}, cfg.CORSAllowedOrigins)
	assert.Zero(t, cfg.APIRateLimit)
	require.NotNil(t, cfg.InitialDate)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *cfg.InitialDate)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"FEED_TIMEOUT", "bad", "FEED_TIMEOUT"},
		{"FEED_TIMEOUT", "0s", "FEED_TIMEOUT"},
		{"FEED_MAX_RETRIES", "-1", "FEED_MAX_RETRIES"},
		{"FEED_CACHE_SIZE", "0", "FEED_CACHE_SIZE"},
		{"FEED_CACHE_TTL", "-1m", "FEED_CACHE_TTL"},
		{"DATA_TIMEZONE", "Mars/Olympus", "DATA_TIMEZONE"},
		{"VIEW_TIMEZONE", "Nowhere/Town", "VIEW_TIMEZONE"},
		{"HEAT_MIN_SAMPLES", "x", "HEAT_MIN_SAMPLES"},
		{"HEAT_BASE_ZOOM", "far", "HEAT_BASE_ZOOM"},
		{"INITIAL_DATE", "yesterday", "INITIAL_DATE"},
		{"FEED_SOURCE", "ftp", "FEED_SOURCE"},
		{"API_RATE_LIMIT", "-5", "API_RATE_LIMIT"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_HTTPSourceRequiresURL(t *testing.T) {
	t.Setenv("FEED_SOURCE", "http")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FEED_URL")
}

func TestLoad_HeatBoundsOrdered(t *testing.T) {
	t.Setenv("HEAT_MIN_SAMPLES", "60")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEAT_MIN_SAMPLES")
}

func TestLoad_LocalTimezone(t *testing.T) {
	t.Setenv("DATA_TIMEZONE", "local")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Local, cfg.DataLocation)
}

func TestLoad_KafkaSource(t *testing.T) {
	t.Setenv("FEED_SOURCE", "kafka")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")
	t.Setenv("KAFKA_TOPIC", "tracker-days")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, FeedSourceKafka, cfg.FeedSource)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "tracker-days", cfg.KafkaTopic)
}

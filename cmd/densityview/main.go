package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/couchcryptid/visitor-density/internal/adapter/feed"
	"github.com/couchcryptid/visitor-density/internal/adapter/kafka"
	httpadapter "github.com/couchcryptid/visitor-density/internal/adapter/http"
	"github.com/couchcryptid/visitor-density/internal/adapter/render"
	"github.com/couchcryptid/visitor-density/internal/config"
	"github.com/couchcryptid/visitor-density/internal/observability"
	"github.com/couchcryptid/visitor-density/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// The bundled table backs both the pipeline (FEED_SOURCE=file) and the
	// /api/v1/visitors endpoint. Other sources leave the endpoint off.
	var (
		source   pipeline.Source
		table    httpadapter.FeedTable
		consumer *kafka.Source
	)
	switch cfg.FeedSource {
	case config.FeedSourceHTTP:
		client := feed.NewClient(cfg.FeedURL, cfg.FeedTimeout, cfg.FeedMaxRetries, cfg.ViewLocation, metrics, logger)
		source = feed.NewCachedSource(client, cfg.FeedCacheSize, cfg.FeedCacheTTL, cfg.ViewLocation, metrics)
		logger.Info("visitor feed over http", "url", cfg.FeedURL, "timeout", cfg.FeedTimeout, "max_retries", cfg.FeedMaxRetries)
	case config.FeedSourceKafka:
		// Tables are held in memory as they arrive; a cache would hide revisions.
		consumer = kafka.NewSource(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.ViewLocation, logger, metrics)
		source = consumer
		logger.Info("visitor feed from kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	default:
		file := feed.NewFileSource(cfg.FeedFile)
		source = feed.NewCachedSource(file, cfg.FeedCacheSize, cfg.FeedCacheTTL, cfg.ViewLocation, metrics)
		table = file
		logger.Info("visitor feed from file", "path", file.Path())
	}

	snap := render.NewSnapshot()
	p := pipeline.New(source,
		pipeline.NewDecoder(cfg.DataLocation, logger, metrics),
		pipeline.Renderers{Bars: snap, Heat: snap, Tooltip: snap},
		pipeline.Options{
			ViewLocation: cfg.ViewLocation,
			Heat:         cfg.Heat,
			InitialDate:  cfg.InitialDate,
		},
		logger, metrics,
	)

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:               cfg.HTTPAddr,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit:          cfg.APIRateLimit,
		Feed:               table,
		DataLocation:       cfg.DataLocation,
		ViewLocation:       cfg.ViewLocation,
	}, p, p, snap, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if consumer != nil {
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("feed consumer error", "error", err)
			}
		}()
	}

	// Render the initial view.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := p.Close(); err != nil {
		logger.Error("release heat layer error", "error", err)
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Error("feed consumer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

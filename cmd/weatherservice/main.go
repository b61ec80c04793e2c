package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "github.com/i474232898/weatherservice/internal/api/http"
	"github.com/i474232898/weatherservice/internal/config"
	"github.com/i474232898/weatherservice/internal/geocode"
	"github.com/i474232898/weatherservice/internal/logging"
	"github.com/i474232898/weatherservice/internal/metrics"
	"github.com/i474232898/weatherservice/internal/perflog"
	"github.com/i474232898/weatherservice/internal/publish"
	"github.com/i474232898/weatherservice/internal/scheduler"
	"github.com/i474232898/weatherservice/internal/store"
	"github.com/i474232898/weatherservice/internal/weather"
	"github.com/i474232898/weatherservice/internal/weather/providers"
)

const appName = "weatherservice"

var version = "dev"

func main() {
	once := flag.Bool("once", false, "run a single collection and exit")
	flag.Parse()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(os.Stdout, cfg, version, appName)

	if err := run(cfg, logger, *once); err != nil {
		logger.Error("weatherservice stopped", "error", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until a signal arrives. Every resource it
// opens is released before it returns.
func run(cfg *config.AppConfig, logger *slog.Logger, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(appName, reg)

	st, err := store.New(ctx, cfg.Database, logger, m)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	if cfg.LocationsCSV != "" {
		n, err := store.ImportLocationsCSV(ctx, st, cfg.LocationsCSV)
		if err != nil {
			logger.Error("failed to import locations", "path", cfg.LocationsCSV, "error", err)
		} else if n > 0 {
			logger.Info("imported locations", "path", cfg.LocationsCSV, "count", n)
		}
	}

	// Shared HTTP client for the feed.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	feed, err := providers.NewBuienradarProvider(httpClient, cfg.FeedURL)
	if err != nil {
		return fmt.Errorf("create feed: %w", err)
	}

	opts := weather.Options{
		Logger:   logger,
		Metrics:  m,
		CacheTTL: cfg.CacheTTL,
	}
	if cfg.MQTT.Enabled() {
		pub := publish.NewMQTTPublisher(cfg.MQTT, logger)
		pub.Connect()
		defer pub.Close()
		opts.Publisher = pub
	}
	if cfg.GeocoderAPIKey != "" {
		g, err := geocode.NewGoogleGeocoder(cfg.GeocoderAPIKey)
		if err != nil {
			logger.Warn("geocoder disabled", "error", err)
		} else {
			opts.Geocoder = g
		}
	}
	service := weather.NewService(st, feed, opts)

	sched := scheduler.New(cfg.Scheduling, service, 2*cfg.HTTPTimeout, logger)
	if once {
		_, err := sched.RunOnce(ctx)
		return err
	}
	if cfg.Scheduling.RunImmediately {
		go func() { _, _ = sched.RunOnce(ctx) }()
	}
	if cfg.Scheduling.Enabled {
		if err := sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	} else {
		logger.Warn("scheduled collection is disabled")
	}

	perf, err := perflog.New(cfg.PerformanceLogPath, cfg.PerformanceLogMaxEntries, logger, perflog.WithGauge(m.RequestLogEntries))
	if err != nil {
		return fmt.Errorf("open performance log: %w", err)
	}

	app := httpapi.NewApp(httpapi.Deps{
		Service:     service,
		PerfLog:     perf,
		Metrics:     m,
		Gatherer:    reg,
		Logger:      logger,
		AppName:     appName,
		CORSOrigins: cfg.CORSOrigins,
	})

	// Start server with graceful shutdown
	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "port", cfg.Port)
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-listenErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

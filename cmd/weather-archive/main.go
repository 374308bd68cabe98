package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/i474232898/weather-archive/internal/api/http"
	"github.com/i474232898/weather-archive/internal/archive"
	"github.com/i474232898/weather-archive/internal/config"
	"github.com/i474232898/weather-archive/internal/dashboard"
	"github.com/i474232898/weather-archive/internal/observability"
	"github.com/i474232898/weather-archive/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	// Archive client with resilience (backoff + circuit breaker), cache and rate limit.
	client := archive.NewClient(archive.ClientConfig{
		BaseURL:           cfg.ArchiveBaseURL,
		HTTPClient:        &http.Client{Timeout: cfg.HTTPTimeout},
		RequestsPerSecond: cfg.FetchRPS,
		CacheSize:         cfg.ArchiveCacheSize,
		CacheTTL:          cfg.ArchiveCacheTTL,
	}, logger, metrics)
	loader := archive.NewLoader(client, cfg.FetchConcurrency, logger, metrics)

	// In-memory session store with configured retention.
	sessions := store.NewMemoryStore(cfg.SessionMaxCount, cfg.SessionMaxAge)

	newState := func() *dashboard.State {
		return dashboard.New(loader, dashboard.Options{
			Debounce:         cfg.FilterDebounce,
			LineThreshold:    cfg.LineChartThreshold,
			ScatterThreshold: cfg.ScatterChartThreshold,
			Logger:           logger,
			Metrics:          metrics,
		})
	}

	app := httpapi.NewApp("weather-archive", logger)
	if info, err := os.Stat(cfg.ArchiveDir); err == nil && info.IsDir() {
		app.Static("/archive", cfg.ArchiveDir)
		logger.Info("serving local archive", "dir", cfg.ArchiveDir)
	}
	httpapi.RegisterRoutes(app, httpapi.Dependencies{
		Index:    client,
		Sessions: sessions,
		NewState: newState,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Drop idle sessions in the background.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessions.Prune(); n > 0 {
					logger.Debug("pruned idle sessions", "count", n)
				}
				metrics.ActiveSessions.Set(float64(sessions.Len()))
			}
		}
	}()

	go func() {
		logger.Info("http server listening", "port", cfg.Port, "archive", cfg.ArchiveBaseURL)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/i474232898/weather-archive/internal/archive"
	"github.com/i474232898/weather-archive/internal/collector"
	"github.com/i474232898/weather-archive/internal/config"
	"github.com/i474232898/weather-archive/internal/observability"
	"github.com/i474232898/weather-archive/internal/scheduler"
	"github.com/i474232898/weather-archive/internal/weather"
	"github.com/i474232898/weather-archive/internal/weather/providers"
)

func main() {
	once := flag.Bool("once", false, "collect a single round and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	writer, err := archive.NewWriter(cfg.ArchiveDir)
	if err != nil {
		logger.Error("failed to open archive", "error", err)
		os.Exit(1)
	}

	// Providers with resilience (backoff + circuit breaker). OpenWeatherMap
	// comes first so its description wins ties.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	var provs []weather.Provider
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, ""))
	}
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey, ""))
	}
	if len(provs) == 0 {
		logger.Error("no provider api keys configured", "keys", []string{"OPENWEATHER_API_KEY", "WEATHERAPI_API_KEY"})
		os.Exit(1)
	}

	service := collector.NewService(writer, provs, logger, metrics)
	sched := scheduler.New(cfg.Cities, cfg.FetchInterval, service, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		if sched.RunOnce(ctx) == 0 {
			os.Exit(1)
		}
		return
	}

	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	<-ctx.Done()
	logger.Info("collector shutting down")
}

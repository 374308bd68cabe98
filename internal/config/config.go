package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/weather-archive/internal/common"
)

// DefaultArchiveBaseURL is the published archive the dashboard reads by default.
const DefaultArchiveBaseURL = "https://raw.githubusercontent.com/drikusroor/weather-archive/main/archive"

type AppConfig struct {
	Port string

	// Archive source and the collector's local copy.
	ArchiveBaseURL string
	ArchiveDir     string

	// Outbound HTTP and archive fetch tuning.
	HTTPTimeout      time.Duration
	ArchiveCacheTTL  time.Duration
	ArchiveCacheSize int
	FetchConcurrency int
	FetchRPS         float64

	// Dashboard behaviour.
	FilterDebounce        time.Duration
	LineChartThreshold    int
	ScatterChartThreshold int

	// In-memory session retention.
	SessionMaxCount int           // max live sessions (0 = unlimited)
	SessionMaxAge   time.Duration // idle age after which a session is dropped (0 = unlimited)

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Collector.
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	FetchInterval     time.Duration
	Cities            []string
}

// Load reads configuration from the environment (and an optional .env file)
// with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := &AppConfig{
		Port:                  getenvDefault("PORT", "8080"),
		ArchiveBaseURL:        strings.TrimRight(getenvDefault("ARCHIVE_BASE_URL", DefaultArchiveBaseURL), "/"),
		ArchiveDir:            getenvDefault("ARCHIVE_DIR", "archive"),
		ArchiveCacheSize:      getenvInt("ARCHIVE_CACHE_SIZE", 256),
		FetchConcurrency:      getenvInt("FETCH_CONCURRENCY", 8),
		LineChartThreshold:    getenvInt("LINE_CHART_THRESHOLD", 500),
		ScatterChartThreshold: getenvInt("SCATTER_CHART_THRESHOLD", 550),
		SessionMaxCount:       getenvInt("SESSION_MAX_COUNT", 1000),
		LogLevel:              getenvDefault("LOG_LEVEL", "info"),
		LogFormat:             getenvDefault("LOG_FORMAT", "json"),
		OpenWeatherAPIKey:     os.Getenv("OPENWEATHER_API_KEY"),
		WeatherAPIKey:         os.Getenv("WEATHERAPI_API_KEY"),
		Cities:                common.SplitList(getenvDefault("CITIES", "Veenendaal,Sao_Paulo,Utrecht")),
	}

	rps, err := strconv.ParseFloat(getenvDefault("FETCH_RPS", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_RPS: %w", err)
	}
	cfg.FetchRPS = rps

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"ARCHIVE_CACHE_TTL", "5m", &cfg.ArchiveCacheTTL},
		{"FILTER_DEBOUNCE", "300ms", &cfg.FilterDebounce},
		{"SESSION_MAX_AGE", "1h", &cfg.SessionMaxAge},
		{"SHUTDOWN_TIMEOUT", "10s", &cfg.ShutdownTimeout},
		{"FETCH_INTERVAL", "1h", &cfg.FetchInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getenvDefault(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if cfg.ArchiveBaseURL == "" {
		return nil, fmt.Errorf("ARCHIVE_BASE_URL must not be empty")
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

// Package archive reads the published weather archive (per-city, per-year
// CSV files plus an index.json) and writes it on the collector side.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-archive/internal/observability"
	"github.com/i474232898/weather-archive/internal/resilience"
	"github.com/i474232898/weather-archive/internal/weather"
)

var (
	// ErrArchiveMissing marks a city-year file that could not be retrieved. It
	// is a soft failure: the loader carries on without that file.
	ErrArchiveMissing = errors.New("archive file not available")

	// ErrInvalidCity is returned for a city that cannot name an archive file.
	ErrInvalidCity = errors.New("invalid city identifier")
)

// IndexError is returned when index.json cannot be fetched or is invalid.
type IndexError struct {
	Reason string
	Err    error
}

func (e *IndexError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("archive index: %s: %v", e.Reason, e.Err)
	}
	return "archive index: " + e.Reason
}

func (e *IndexError) Unwrap() error { return e.Err }

// Index lists the years available per city.
type Index struct {
	Cities      map[string][]int `json:"cities" validate:"required"`
	LastUpdated string           `json:"last_updated" validate:"required"`
}

// ClientConfig bundles archive endpoint and resilience settings.
type ClientConfig struct {
	BaseURL           string
	HTTPClient        *http.Client
	Backoff           resilience.Backoff
	RequestsPerSecond float64 // <= 0 disables limiting
	CacheSize         int
	CacheTTL          time.Duration
}

// Client fetches archive resources over HTTP. Successful city-year fetches
// are cached for CacheTTL and concurrent fetches of one file are collapsed.
type Client struct {
	baseURL  string
	httpCfg  resilience.Config
	circuit  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	cache    *expirable.LRU[string, []weather.Observation]
	group    singleflight.Group
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Backoff.InitialInterval <= 0 {
		cfg.Backoff = resilience.DefaultBackoff
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		httpCfg:  resilience.Config{Client: cfg.HTTPClient, Backoff: cfg.Backoff},
		circuit:  resilience.NewBreaker("archive"),
		limiter:  rate.NewLimiter(limit, 1),
		cache:    expirable.NewLRU[string, []weather.Observation](cfg.CacheSize, nil, cfg.CacheTTL),
		validate: validator.New(),
		logger:   logger,
		metrics:  metrics,
	}
}

// FetchCityYear returns the observations of {city}_{year}.csv. Any non-2xx
// response or transport failure is reported as ErrArchiveMissing.
func (c *Client) FetchCityYear(ctx context.Context, city string, year int) ([]weather.Observation, error) {
	if !ValidCity(city) {
		return nil, fmt.Errorf("%w: %w: %q", ErrArchiveMissing, ErrInvalidCity, city)
	}
	key := city + "_" + strconv.Itoa(year)

	if obs, ok := c.cache.Get(key); ok {
		c.metrics.ArchiveCache.WithLabelValues("hit").Inc()
		return obs, nil
	}
	c.metrics.ArchiveCache.WithLabelValues("miss").Inc()

	v, err, shared := c.group.Do(key, func() (any, error) {
		obs, err := c.fetchCityYear(ctx, key)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, obs)
		return obs, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("archive fetch shared", "file", key)
	}
	return v.([]weather.Observation), nil
}

func (c *Client) fetchCityYear(ctx context.Context, key string) ([]weather.Observation, error) {
	start := time.Now()
	defer func() {
		c.metrics.ArchiveFetchDuration.WithLabelValues("csv").Observe(time.Since(start).Seconds())
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	target, err := url.JoinPath(c.baseURL, key+".csv")
	if err != nil {
		return nil, fmt.Errorf("build archive url: %w", err)
	}

	resp, err := resilience.Do(ctx, c.httpCfg, c.circuit, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, target, nil)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		outcome := "error"
		if resilience.StatusCode(err) != 0 {
			outcome = "missing"
		}
		c.metrics.ArchiveFetches.WithLabelValues("csv", outcome).Inc()
		return nil, fmt.Errorf("%w: %s: %w", ErrArchiveMissing, key, err)
	}
	defer resp.Body.Close()

	obs := weather.ParseCSV(resp.Body, c.logger.With("file", key))
	c.metrics.ArchiveFetches.WithLabelValues("csv", "ok").Inc()
	return obs, nil
}

// FetchIndex retrieves and validates index.json.
func (c *Client) FetchIndex(ctx context.Context) (Index, error) {
	start := time.Now()
	defer func() {
		c.metrics.ArchiveFetchDuration.WithLabelValues("index").Observe(time.Since(start).Seconds())
	}()

	idx, err := c.fetchIndex(ctx)
	if err != nil {
		c.metrics.ArchiveFetches.WithLabelValues("index", "error").Inc()
		return Index{}, err
	}
	c.metrics.ArchiveFetches.WithLabelValues("index", "ok").Inc()
	return idx, nil
}

func (c *Client) fetchIndex(ctx context.Context) (Index, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Index{}, err
	}

	target, err := url.JoinPath(c.baseURL, "index.json")
	if err != nil {
		return Index{}, &IndexError{Reason: "invalid base url", Err: err}
	}

	resp, err := resilience.Do(ctx, c.httpCfg, c.circuit, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, target, nil)
	})
	if err != nil {
		if ctx.Err() != nil {
			return Index{}, ctx.Err()
		}
		return Index{}, &IndexError{Reason: "fetch failed", Err: err}
	}
	defer resp.Body.Close()

	var idx Index
	if err := json.NewDecoder(resp.Body).Decode(&idx); err != nil {
		return Index{}, &IndexError{Reason: "malformed json", Err: err}
	}
	if err := c.validate.Struct(idx); err != nil {
		return Index{}, &IndexError{Reason: "missing fields", Err: err}
	}
	return idx, nil
}

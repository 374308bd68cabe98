// Package collector samples live provider readings and appends them to the
// on-disk archive that the dashboard later reads.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-archive/internal/observability"
	"github.com/i474232898/weather-archive/internal/weather"
)

var (
	ErrNoProviders = errors.New("no weather providers configured")
	ErrNoReadings  = errors.New("no successful provider readings")
)

// Sink persists collected observations.
type Sink interface {
	Append(city string, o weather.Observation) error
	UpdateIndex(city string, year int, day time.Time) error
}

// Service fetches from all providers concurrently, combines the readings and
// appends one archive row per city.
type Service struct {
	sink      Sink
	providers []weather.Provider
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewService creates a new Service. Providers listed first win ties when
// readings disagree on the description.
func NewService(sink Sink, providers []weather.Provider, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		sink:      sink,
		providers: providers,
		clock:     clockwork.NewRealClock(),
		logger:    logger,
		metrics:   metrics,
	}
}

// SetClock overrides the clock used to stamp rows. Intended for tests.
func (s *Service) SetClock(c clockwork.Clock) {
	s.clock = c
}

// Collect samples every provider for city and appends the combined
// observation to the archive.
func (s *Service) Collect(ctx context.Context, city string) (weather.Observation, error) {
	if len(s.providers) == 0 {
		return weather.Observation{}, ErrNoProviders
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		readings = make([]*weather.Reading, len(s.providers))
	)

	for i, p := range s.providers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			r, err := p.Fetch(ctx, city)
			if err != nil {
				// Partial success is fine.
				s.logger.Warn("provider fetch failed", "provider", p.Name(), "city", city, "error", err)
				s.metrics.CollectorReadings.WithLabelValues(p.Name(), "error").Inc()
				return
			}
			s.metrics.CollectorReadings.WithLabelValues(p.Name(), "success").Inc()

			mu.Lock()
			readings[i] = &r
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok []weather.Reading
	for _, r := range readings {
		if r != nil {
			ok = append(ok, *r)
		}
	}
	if len(ok) == 0 {
		return weather.Observation{}, fmt.Errorf("%w for %s", ErrNoReadings, city)
	}

	obs := CombineReadings(city, ok)
	obs.Timestamp = s.clock.Now().UTC().Truncate(time.Second)

	if err := s.sink.Append(city, obs); err != nil {
		s.metrics.CollectorWrites.WithLabelValues("error").Inc()
		return obs, fmt.Errorf("append %s: %w", city, err)
	}
	if err := s.sink.UpdateIndex(city, obs.Timestamp.Year(), obs.Timestamp); err != nil {
		s.metrics.CollectorWrites.WithLabelValues("error").Inc()
		return obs, fmt.Errorf("update index for %s: %w", city, err)
	}
	s.metrics.CollectorWrites.WithLabelValues("success").Inc()

	s.logger.Info("observation archived",
		"city", city,
		"location", obs.Location,
		"temperature_c", float64(obs.Temperature),
		"description", obs.Description,
		"providers", len(ok),
	)
	return obs, nil
}

// CombineReadings merges provider readings into one observation: the mean
// temperature and the most common description, earliest reading winning a
// tie. The location is the first provider-reported name, else city. The
// timestamp is left for the caller to set.
func CombineReadings(city string, readings []weather.Reading) weather.Observation {
	obs := weather.Observation{Location: city, Temperature: weather.Temperature(math.NaN())}
	if len(readings) == 0 {
		return obs
	}

	var sum float64
	counts := make(map[string]int)
	for _, r := range readings {
		sum += r.TemperatureC
		counts[r.Description]++
	}

	bestDesc, bestCount := "", 0
	for _, r := range readings {
		if counts[r.Description] > bestCount {
			bestDesc, bestCount = r.Description, counts[r.Description]
		}
	}

	for _, r := range readings {
		if r.Location != "" {
			obs.Location = r.Location
			break
		}
	}

	obs.Temperature = weather.Temperature(sum / float64(len(readings)))
	obs.Description = bestDesc
	return obs
}

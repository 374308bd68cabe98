package weather

import (
	"context"
	"time"
)

// Reading is a single provider's current conditions for a city, normalized so
// readings from different providers can be combined into one Observation.
type Reading struct {
	ProviderName string
	Timestamp    time.Time

	Location     string // city name as reported by the provider
	TemperatureC float64
	Description  string // lower-cased
}

// Provider abstracts a live weather source (e.g. OpenWeatherMap, WeatherAPI).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, city string) (Reading, error)
}

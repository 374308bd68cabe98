package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/weather-archive/internal/common"
	"github.com/i474232898/weather-archive/internal/resilience"
	"github.com/i474232898/weather-archive/internal/weather"
	"github.com/sony/gobreaker"
)

const weatherAPIURL = "https://api.weatherapi.com/v1/current.json"

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg resilience.Config
	circuit *gobreaker.CircuitBreaker
}

// NewWeatherAPIProvider builds the provider. An empty baseURL selects the
// public endpoint.
func NewWeatherAPIProvider(client *http.Client, apiKey, baseURL string) *WeatherAPIProvider {
	if baseURL == "" {
		baseURL = weatherAPIURL
	}
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: resilience.Config{Client: client, Backoff: resilience.DefaultBackoff},
		circuit: resilience.NewBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, city string) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, fmt.Errorf("weatherapi: %w", errMissingAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("q", city)
		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), nil)
	}

	resp, err := resilience.Do(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Reading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Location struct {
			Name           string `json:"name"`
			LocaltimeEpoch int64  `json:"localtime_epoch"`
		} `json:"location"`
		Current struct {
			TempC     *float64 `json:"temp_c"`
			Condition struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, err
	}
	if payload.Current.TempC == nil {
		return weather.Reading{}, fmt.Errorf("weatherapi: response for %s has no temperature", city)
	}

	ts := time.Now().UTC()
	if payload.Location.LocaltimeEpoch > 0 {
		ts = time.Unix(payload.Location.LocaltimeEpoch, 0).UTC()
	}

	return weather.Reading{
		ProviderName: p.name,
		Timestamp:    ts,
		Location:     payload.Location.Name,
		TemperatureC: *payload.Current.TempC,
		Description:  mapWeatherAPIDescription(payload.Current.Condition.Text),
	}, nil
}

// mapWeatherAPIDescription folds WeatherAPI condition texts onto the
// OpenWeatherMap vocabulary the archive already uses.
func mapWeatherAPIDescription(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case t == "":
		return ""
	case common.HasAny(t, "thunder"):
		if common.HasAny(t, "heavy") {
			return "thunderstorm with heavy rain"
		}
		if common.HasAny(t, "rain") {
			return "thunderstorm with rain"
		}
		return "thunderstorm"
	case common.HasAny(t, "snow", "sleet", "blizzard", "ice pellets"):
		switch {
		case common.HasAny(t, "heavy", "blizzard"):
			return "heavy snow"
		case common.HasAny(t, "light", "patchy"):
			return "light snow"
		default:
			return "snow"
		}
	case common.HasAny(t, "shower"):
		return "shower rain"
	case common.HasAny(t, "drizzle"):
		return "drizzle"
	case common.HasAny(t, "rain"):
		switch {
		case common.HasAny(t, "torrential"):
			return "very heavy rain"
		case common.HasAny(t, "heavy"):
			return "heavy intensity rain"
		case common.HasAny(t, "moderate"):
			return "moderate rain"
		case common.HasAny(t, "light", "patchy"):
			return "light rain"
		default:
			return "rain"
		}
	case common.HasAny(t, "overcast"):
		return "overcast clouds"
	case common.HasAny(t, "partly"):
		return "scattered clouds"
	case common.HasAny(t, "cloud"):
		return "broken clouds"
	case common.HasAny(t, "fog"):
		return "fog"
	case common.HasAny(t, "mist"):
		return "mist"
	case common.HasAny(t, "haze"):
		return "haze"
	case common.HasAny(t, "sunny", "clear"):
		return "clear sky"
	default:
		return t
	}
}

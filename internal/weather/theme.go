package weather

import "github.com/i474232898/weather-archive/internal/common"

// Theme is the dashboard background derived from the latest observation.
type Theme string

const (
	ThemeClear   Theme = "clear"
	ThemeCloudy  Theme = "cloudy"
	ThemeRain    Theme = "rain"
	ThemeDefault Theme = "default"
)

// ThemeForDescription maps a description onto a theme.
func ThemeForDescription(description string) Theme {
	switch {
	case common.HasAny(description, "clear"):
		return ThemeClear
	case common.HasAny(description, "cloud"):
		return ThemeCloudy
	case common.HasAny(description, "rain", "drizzle"):
		return ThemeRain
	default:
		return ThemeDefault
	}
}

// ThemeFor picks the theme of the most recent observation in data. An empty
// dataset yields ThemeClear.
func ThemeFor(data Dataset) Theme {
	var (
		latest Observation
		found  bool
	)
	for _, city := range data.Cities() {
		for _, o := range data[city] {
			if !o.HasTimestamp() {
				continue
			}
			if !found || o.Timestamp.After(latest.Timestamp) {
				latest, found = o, true
			}
		}
	}
	if !found {
		return ThemeClear
	}
	return ThemeForDescription(latest.Description)
}

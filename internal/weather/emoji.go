package weather

import "strings"

// UnknownEmoji is shown for descriptions without a mapping.
const UnknownEmoji = "❓"

var emojis = map[string]string{
	"clear sky":                    "☀️",
	"few clouds":                   "🌤️",
	"scattered clouds":             "⛅",
	"broken clouds":                "🌥️",
	"overcast clouds":              "☁️",
	"shower rain":                  "🌦️",
	"drizzle":                      "🌧️",
	"light intensity drizzle":      "🌧️",
	"heavy intensity drizzle":      "🌧️",
	"rain":                         "🌧️",
	"light rain":                   "🌧️",
	"moderate rain":                "🌧️",
	"heavy intensity rain":         "🌧️",
	"very heavy rain":              "🌧️",
	"thunderstorm":                 "⛈️",
	"thunderstorm with rain":       "⛈️",
	"thunderstorm with light rain": "⛈️",
	"thunderstorm with heavy rain": "⛈️",
	"snow":                         "❄️",
	"light snow":                   "❄️",
	"heavy snow":                   "❄️",
	"mist":                         "🌫️",
	"haze":                         "🌫️",
	"fog":                          "🌫️",
}

// LookupEmoji returns the emoji for a description, case-insensitively.
func LookupEmoji(description string) (string, bool) {
	e, ok := emojis[strings.ToLower(strings.TrimSpace(description))]
	return e, ok
}

// Emoji is LookupEmoji with the UnknownEmoji fallback.
func Emoji(description string) string {
	if e, ok := LookupEmoji(description); ok {
		return e
	}
	return UnknownEmoji
}

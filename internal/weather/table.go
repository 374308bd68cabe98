package weather

import (
	"strings"
	"time"
)

// TableRow is one line of the observations table.
type TableRow struct {
	Timestamp   *time.Time  `json:"timestamp"`
	City        string      `json:"city"`
	Temperature Temperature `json:"temperatureC"`
	Description string      `json:"description"`
	Emoji       string      `json:"emoji"`
}

// DisplayName turns a city identifier such as "Sao_Paulo" into "Sao Paulo".
func DisplayName(city string) string {
	return strings.ReplaceAll(city, "_", " ")
}

// BuildTable flattens data into rows, cities in sorted order and observations
// in arrival order. Rows without a timestamp are kept with a nil Timestamp.
func BuildTable(data Dataset) []TableRow {
	rows := make([]TableRow, 0, data.Len())
	for _, city := range data.Cities() {
		name := DisplayName(city)
		for _, o := range data[city] {
			row := TableRow{
				City:        name,
				Temperature: o.Temperature,
				Description: o.Description,
				Emoji:       Emoji(o.Description),
			}
			if o.HasTimestamp() {
				ts := o.Timestamp
				row.Timestamp = &ts
			}
			rows = append(rows, row)
		}
	}
	return rows
}

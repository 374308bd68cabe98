package weather

import (
	"encoding/json"
	"sort"
	"time"
)

// Default observation counts above which charts switch to daily aggregates.
const (
	DefaultLineThreshold    = 500
	DefaultScatterThreshold = 550
)

// Extent is the daily min/max carried alongside an aggregated value.
type Extent struct {
	Min Temperature `json:"min"`
	Max Temperature `json:"max"`
}

// SeriesRow is one distinct timestamp with a value per city that reported at it.
// Cities absent at that timestamp have no key.
type SeriesRow struct {
	Timestamp time.Time
	Values    map[string]Temperature
	Extents   map[string]Extent
}

// MarshalJSON flattens the row into {"timestamp": ..., "<city>": temp, ...}.
func (r SeriesRow) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Values)+2)
	for city, v := range r.Values {
		m[city] = v
	}
	m["timestamp"] = r.Timestamp.UTC().Format(time.RFC3339)
	if len(r.Extents) > 0 {
		m["extents"] = r.Extents
	}
	return json.Marshal(m)
}

// LineChart is the multi-series line chart payload.
type LineChart struct {
	Aggregated bool        `json:"aggregated"`
	Total      int         `json:"total"`
	Cities     []string    `json:"cities"`
	Rows       []SeriesRow `json:"rows"`
}

// ScatterPoint is a single plotted point. Min and Max are set only for
// aggregated points.
type ScatterPoint struct {
	X           int64        `json:"x"` // unix milliseconds
	Y           Temperature  `json:"y"`
	Min         *Temperature `json:"min,omitempty"`
	Max         *Temperature `json:"max,omitempty"`
	Description string       `json:"description"`
	Emoji       string       `json:"emoji"`
	Location    string       `json:"location"`
}

// ScatterSeries holds one city's points.
type ScatterSeries struct {
	City   string         `json:"city"`
	Points []ScatterPoint `json:"points"`
}

// ScatterChart is the scatter chart payload.
type ScatterChart struct {
	Aggregated bool            `json:"aggregated"`
	Total      int             `json:"total"`
	Series     []ScatterSeries `json:"series"`
}

// MergeTimeSeries joins per-city observations on exact timestamp equality and
// returns one row per distinct timestamp in ascending order. A later
// observation for the same city and timestamp overwrites the earlier one.
func MergeTimeSeries(data Dataset) []SeriesRow {
	m := newRowMerger()
	for _, city := range data.Cities() {
		for _, o := range data[city] {
			if !o.HasTimestamp() {
				continue
			}
			m.row(o.Timestamp).Values[city] = o.Temperature
		}
	}
	return m.sorted()
}

// BuildLineChart merges raw observations, or per-day averages with min/max
// extents when the dataset holds more than threshold observations.
func BuildLineChart(data Dataset, threshold int) LineChart {
	total := data.Len()
	chart := LineChart{Total: total, Cities: data.Cities()}

	if total <= threshold {
		chart.Rows = MergeTimeSeries(data)
		return chart
	}

	chart.Aggregated = true
	m := newRowMerger()
	for _, city := range chart.Cities {
		for _, p := range AggregateByDay(data[city]) {
			row := m.row(p.Date)
			row.Values[city] = p.AvgTemperature
			if row.Extents == nil {
				row.Extents = make(map[string]Extent)
			}
			row.Extents[city] = Extent{Min: p.MinTemperature, Max: p.MaxTemperature}
		}
	}
	chart.Rows = m.sorted()
	return chart
}

// BuildScatterChart emits one series per city, switching to per-day
// aggregates when the dataset holds more than threshold observations.
func BuildScatterChart(data Dataset, threshold int) ScatterChart {
	total := data.Len()
	chart := ScatterChart{Total: total, Aggregated: total > threshold}

	for _, city := range data.Cities() {
		series := ScatterSeries{City: city, Points: []ScatterPoint{}}

		if chart.Aggregated {
			for _, p := range AggregateByDay(data[city]) {
				lo, hi := p.MinTemperature, p.MaxTemperature
				series.Points = append(series.Points, ScatterPoint{
					X:           p.Date.UnixMilli(),
					Y:           p.AvgTemperature,
					Min:         &lo,
					Max:         &hi,
					Description: p.Description,
					Emoji:       Emoji(p.Description),
					Location:    p.Location,
				})
			}
		} else {
			for _, o := range data[city] {
				if !o.HasTimestamp() {
					continue
				}
				series.Points = append(series.Points, ScatterPoint{
					X:           o.Timestamp.UnixMilli(),
					Y:           o.Temperature,
					Description: o.Description,
					Emoji:       Emoji(o.Description),
					Location:    o.Location,
				})
			}
		}

		chart.Series = append(chart.Series, series)
	}
	return chart
}

type rowMerger struct {
	rows map[int64]*SeriesRow
}

func newRowMerger() *rowMerger {
	return &rowMerger{rows: make(map[int64]*SeriesRow)}
}

func (m *rowMerger) row(ts time.Time) *SeriesRow {
	key := ts.UnixNano()
	r, ok := m.rows[key]
	if !ok {
		r = &SeriesRow{Timestamp: ts.UTC(), Values: make(map[string]Temperature)}
		m.rows[key] = r
	}
	return r
}

func (m *rowMerger) sorted() []SeriesRow {
	out := make([]SeriesRow, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

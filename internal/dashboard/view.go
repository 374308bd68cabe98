package dashboard

import (
	"time"

	"github.com/i474232898/weather-archive/internal/archive"
	"github.com/i474232898/weather-archive/internal/weather"
)

// Snapshot is the raw input of a View. Derive is a pure function of it.
type Snapshot struct {
	Selection        archive.Selection
	Pending          weather.FilterSpec
	Committed        weather.FilterSpec
	Dataset          weather.Dataset
	Report           archive.Report
	LoadErr          error
	Loading          bool
	Now              time.Time
	LineThreshold    int
	ScatterThreshold int
}

// DescriptionOption is one entry of the description picker.
type DescriptionOption struct {
	Value    string `json:"value"`
	Amount   int    `json:"amount"`
	Emoji    string `json:"emoji"`
	Selected bool   `json:"selected"`
}

// Status carries the loading and failure banners.
type Status struct {
	Loading     bool                 `json:"loading"`
	FetchFailed bool                 `json:"fetchFailed"`
	Failed      []archive.FailedPair `json:"failed,omitempty"`
	Error       string               `json:"error,omitempty"`
	LoadID      string               `json:"loadId,omitempty"`
}

// View is everything the dashboard renders.
type View struct {
	Selection      archive.Selection           `json:"selection"`
	Filters        weather.FilterSpec          `json:"filters"`
	PendingFilters weather.FilterSpec          `json:"pendingFilters"`
	Bounds         *weather.DateBounds         `json:"bounds,omitempty"`
	QuickRanges    map[weather.QuickRange]bool `json:"quickRanges,omitempty"`
	Descriptions   []DescriptionOption         `json:"descriptions"`
	Table          []weather.TableRow          `json:"table"`
	LineChart      weather.LineChart           `json:"lineChart"`
	ScatterChart   weather.ScatterChart        `json:"scatterChart"`
	Theme          weather.Theme               `json:"theme"`
	Status         Status                      `json:"status"`
	Query          string                      `json:"query"`
}

// Derive computes the view. Charts and the table use the committed filters;
// description counts respect only the committed date range.
func Derive(s Snapshot) View {
	data := s.Dataset
	if data == nil {
		data = weather.Dataset{}
	}
	lineThreshold, scatterThreshold := s.LineThreshold, s.ScatterThreshold
	if lineThreshold <= 0 {
		lineThreshold = weather.DefaultLineThreshold
	}
	if scatterThreshold <= 0 {
		scatterThreshold = weather.DefaultScatterThreshold
	}

	filtered := weather.ApplyFilters(data, s.Committed)

	v := View{
		Selection:      s.Selection,
		Filters:        s.Committed,
		PendingFilters: s.Pending,
		Descriptions:   describe(data, s.Committed),
		Table:          weather.BuildTable(filtered),
		LineChart:      weather.BuildLineChart(filtered, lineThreshold),
		ScatterChart:   weather.BuildScatterChart(filtered, scatterThreshold),
		Theme:          weather.ThemeFor(data),
		Status: Status{
			Loading:     s.Loading,
			FetchFailed: s.LoadErr != nil || s.Report.AnyFailed(),
			Failed:      s.Report.Failed,
			LoadID:      s.Report.LoadID,
		},
		Query: EncodeQuery(s.Selection, s.Committed).Encode(),
	}
	if s.LoadErr != nil {
		v.Status.Error = s.LoadErr.Error()
	}

	if bounds := weather.ComputeDateBounds(data); !bounds.IsEmpty() {
		v.Bounds = &bounds
		v.QuickRanges = make(map[weather.QuickRange]bool, len(weather.QuickRanges))
		for _, r := range weather.QuickRanges {
			v.QuickRanges[r] = r.IsActive(s.Committed.StartTime, s.Committed.EndTime, bounds, s.Now)
		}
	}
	return v
}

func describe(data weather.Dataset, spec weather.FilterSpec) []DescriptionOption {
	selected := make(map[string]struct{}, len(spec.SelectedDescriptions))
	for _, d := range spec.SelectedDescriptions {
		selected[d] = struct{}{}
	}

	counts := weather.ComputeDescriptionFrequencies(data, spec.StartTime, spec.EndTime)
	options := make([]DescriptionOption, 0, len(counts))
	for _, c := range counts {
		_, on := selected[c.Value]
		options = append(options, DescriptionOption{
			Value:    c.Value,
			Amount:   c.Amount,
			Emoji:    weather.Emoji(c.Value),
			Selected: on,
		})
	}
	return options
}

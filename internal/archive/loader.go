package archive

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-archive/internal/observability"
	"github.com/i474232898/weather-archive/internal/weather"
)

// Fetcher is the archive transport the Loader depends on.
type Fetcher interface {
	FetchCityYear(ctx context.Context, city string, year int) ([]weather.Observation, error)
	FetchIndex(ctx context.Context) (Index, error)
}

// Selection is the set of cities to load and, optionally, which years per
// city. A city missing from Years defaults to the current UTC year; a city
// present with an empty list loads nothing. AllYears takes the years from
// the archive index instead.
type Selection struct {
	Cities   []string         `json:"cities"`
	Years    map[string][]int `json:"years,omitempty"`
	AllYears bool             `json:"allYears,omitempty"`
}

// ValidCity reports whether city can name an archive file: non-empty and
// free of path separators and "..".
func ValidCity(city string) bool {
	return city != "" && !strings.ContainsAny(city, `/\`) && !strings.Contains(city, "..")
}

// Normalize trims and de-duplicates city names, dropping empty or invalid
// ones, and sorts and de-duplicates each year list.
func (s Selection) Normalize() Selection {
	out := Selection{AllYears: s.AllYears}
	seen := make(map[string]struct{}, len(s.Cities))
	for _, city := range s.Cities {
		city = strings.TrimSpace(city)
		if !ValidCity(city) {
			continue
		}
		if _, dup := seen[city]; dup {
			continue
		}
		seen[city] = struct{}{}
		out.Cities = append(out.Cities, city)
	}
	if len(s.Years) > 0 {
		out.Years = make(map[string][]int, len(s.Years))
		for city, years := range s.Years {
			city = strings.TrimSpace(city)
			if _, ok := seen[city]; !ok {
				continue
			}
			ys := slices.Clone(years)
			slices.Sort(ys)
			out.Years[city] = slices.Compact(ys)
		}
	}
	return out
}

// FailedPair records a city-year that could not be loaded.
type FailedPair struct {
	City  string `json:"city"`
	Year  int    `json:"year"`
	Error string `json:"error"`
}

// Report describes how a load went.
type Report struct {
	LoadID string       `json:"loadId"`
	Pairs  int          `json:"pairs"`
	Failed []FailedPair `json:"failed,omitempty"`
}

// AnyFailed reports whether at least one city-year was skipped.
func (r Report) AnyFailed() bool { return len(r.Failed) > 0 }

type pair struct {
	City string
	Year int
}

// Loader turns a Selection into a Dataset by fetching city-year files
// concurrently and concatenating them per city in ascending year order.
type Loader struct {
	fetcher     Fetcher
	clock       clockwork.Clock
	concurrency int
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewLoader creates a Loader. concurrency <= 0 means unbounded.
func NewLoader(fetcher Fetcher, concurrency int, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{
		fetcher:     fetcher,
		clock:       clockwork.NewRealClock(),
		concurrency: concurrency,
		logger:      logger,
		metrics:     metrics,
	}
}

// SetClock overrides the clock used to pick the default year. Intended for tests.
func (l *Loader) SetClock(c clockwork.Clock) {
	l.clock = c
}

// Load fetches every city-year in sel. A failed city-year is logged, listed
// in the Report and otherwise ignored. Every selected city is present in the
// result. The only errors returned are context cancellation and, for
// AllYears selections, an *IndexError.
func (l *Loader) Load(ctx context.Context, sel Selection) (weather.Dataset, Report, error) {
	sel = sel.Normalize()
	report := Report{LoadID: uuid.NewString()}

	if sel.AllYears {
		idx, err := l.fetcher.FetchIndex(ctx)
		if err != nil {
			return nil, report, err
		}
		sel.Years = make(map[string][]int, len(sel.Cities))
		for _, city := range sel.Cities {
			ys := slices.Clone(idx.Cities[city])
			slices.Sort(ys)
			sel.Years[city] = slices.Compact(ys)
		}
	}

	pairs := l.plan(sel)
	report.Pairs = len(pairs)

	results := make([][]weather.Observation, len(pairs))
	errs := make([]error, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	if l.concurrency > 0 {
		g.SetLimit(l.concurrency)
	}
	for i, p := range pairs {
		g.Go(func() error {
			obs, err := l.fetcher.FetchCityYear(gctx, p.City, p.Year)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = obs
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	data := make(weather.Dataset, len(sel.Cities))
	for _, city := range sel.Cities {
		data[city] = []weather.Observation{}
	}
	for i, p := range pairs {
		if errs[i] != nil {
			l.logger.Warn("skipping archive file",
				"load_id", report.LoadID,
				"city", p.City,
				"year", p.Year,
				"error", errs[i],
			)
			report.Failed = append(report.Failed, FailedPair{City: p.City, Year: p.Year, Error: errs[i].Error()})
			continue
		}
		data[p.City] = append(data[p.City], results[i]...)
	}

	l.metrics.ObservationsLoaded.Observe(float64(data.Len()))
	l.logger.Debug("dataset loaded",
		"load_id", report.LoadID,
		"cities", len(sel.Cities),
		"pairs", len(pairs),
		"failed", len(report.Failed),
		"observations", data.Len(),
	)
	return data, report, nil
}

// plan expands a normalized selection into city-year pairs, cities in
// selection order and years ascending.
func (l *Loader) plan(sel Selection) []pair {
	current := l.clock.Now().UTC().Year()

	var pairs []pair
	for _, city := range sel.Cities {
		years, ok := sel.Years[city]
		if !ok {
			years = []int{current}
		}
		for _, y := range years {
			pairs = append(pairs, pair{City: city, Year: y})
		}
	}
	return pairs
}

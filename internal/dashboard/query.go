package dashboard

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-archive/internal/archive"
	"github.com/i474232898/weather-archive/internal/common"
	"github.com/i474232898/weather-archive/internal/weather"
)

// Query parameter names shared by the shareable URL and the HTTP API.
const (
	ParamCities       = "cities"
	ParamYears        = "years"
	ParamAllYears     = "allYears"
	ParamStart        = "start"
	ParamEnd          = "end"
	ParamMinTemp      = "minTemp"
	ParamMaxTemp      = "maxTemp"
	ParamDescriptions = "descriptions"

	// years.<city> overrides years for one city.
	paramYearsPrefix = ParamYears + "."
)

// EncodeQuery serializes the selection and the user-chosen filters into URL
// query parameters. Observed bounds are never encoded.
func EncodeQuery(sel archive.Selection, spec weather.FilterSpec) url.Values {
	q := url.Values{}
	if len(sel.Cities) > 0 {
		q.Set(ParamCities, strings.Join(sel.Cities, ","))
	}
	for _, city := range sel.Cities {
		if years, ok := sel.Years[city]; ok {
			q.Set(paramYearsPrefix+city, joinInts(years))
		}
	}
	if sel.AllYears {
		q.Set(ParamAllYears, "true")
	}

	if spec.StartTime != nil {
		q.Set(ParamStart, spec.StartTime.UTC().Format(time.RFC3339))
	}
	if spec.EndTime != nil {
		q.Set(ParamEnd, spec.EndTime.UTC().Format(time.RFC3339))
	}
	if spec.MinTemperature != nil {
		q.Set(ParamMinTemp, strconv.FormatFloat(*spec.MinTemperature, 'f', -1, 64))
	}
	if spec.MaxTemperature != nil {
		q.Set(ParamMaxTemp, strconv.FormatFloat(*spec.MaxTemperature, 'f', -1, 64))
	}
	for _, d := range spec.SelectedDescriptions {
		q.Add(ParamDescriptions, d)
	}
	return q
}

// DecodeQuery is the inverse of EncodeQuery. Malformed values are treated as
// "no constraint" rather than rejected.
func DecodeQuery(q url.Values) (archive.Selection, weather.FilterSpec) {
	sel := archive.Selection{Cities: common.SplitList(q.Get(ParamCities))}

	shared, hasShared := parseInts(q, ParamYears)
	for _, city := range sel.Cities {
		if years, ok := parseInts(q, paramYearsPrefix+city); ok {
			if sel.Years == nil {
				sel.Years = map[string][]int{}
			}
			sel.Years[city] = years
			continue
		}
		if hasShared {
			if sel.Years == nil {
				sel.Years = map[string][]int{}
			}
			sel.Years[city] = slices.Clone(shared)
		}
	}
	sel.AllYears, _ = strconv.ParseBool(q.Get(ParamAllYears))

	var spec weather.FilterSpec
	spec.StartTime = ParseTime(q.Get(ParamStart))
	spec.EndTime = ParseTime(q.Get(ParamEnd))
	spec.MinTemperature = ParseFloat(q.Get(ParamMinTemp))
	spec.MaxTemperature = ParseFloat(q.Get(ParamMaxTemp))
	spec.SelectedDescriptions = decodeDescriptions(q[ParamDescriptions])

	return sel.Normalize(), spec.Normalize()
}

// ParseTime accepts RFC3339, a bare date, the archive layout, or unix
// milliseconds. Anything else yields nil.
func ParseTime(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	if t, ok := weather.ParseTimestamp(v); ok {
		return &t
	}
	return nil
}

// ParseFloat yields nil for anything that is not a finite number.
func ParseFloat(v string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// decodeDescriptions reads one description per value. Descriptions may
// contain commas, so values are never split.
func decodeDescriptions(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// parseInts returns ok=false when the key is absent or holds no valid
// integer. A key present with an empty value is an explicit empty list.
// Unparseable entries are dropped.
func parseInts(q url.Values, key string) ([]int, bool) {
	if q.Has(key) && strings.TrimSpace(q.Get(key)) == "" {
		return []int{}, true
	}
	var out []int
	for _, part := range common.SplitList(q.Get(key)) {
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
		}
	}
	return out, len(out) > 0
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

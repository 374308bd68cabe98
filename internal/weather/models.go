package weather

import (
	"encoding/json"
	"math"
	"slices"
	"sort"
	"strings"
	"time"
)

// Temperature is a reading in degrees Celsius. A malformed archive value is
// kept as NaN so that every comparison against it is false.
type Temperature float64

// IsNaN reports whether the temperature could not be parsed.
func (t Temperature) IsNaN() bool {
	return math.IsNaN(float64(t))
}

// MarshalJSON encodes NaN and infinities as null.
func (t Temperature) MarshalJSON() ([]byte, error) {
	f := float64(t)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON decodes null back into NaN.
func (t *Temperature) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = Temperature(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*t = Temperature(f)
	return nil
}

// Observation is one timestamped weather reading for a city.
// Observations are immutable once parsed.
type Observation struct {
	Timestamp   time.Time   `json:"timestamp"` // always UTC; zero when unparseable
	Location    string      `json:"location"`
	Temperature Temperature `json:"temperatureC"`
	Description string      `json:"description"`
}

// HasTimestamp reports whether the archive row carried a usable timestamp.
func (o Observation) HasTimestamp() bool {
	return !o.Timestamp.IsZero()
}

// Dataset maps a city identifier to its observations in the order received.
type Dataset map[string][]Observation

// Cities returns the dataset keys in a stable (sorted) order.
func (d Dataset) Cities() []string {
	cities := make([]string, 0, len(d))
	for city := range d {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return cities
}

// Len returns the total number of observations across all cities.
func (d Dataset) Len() int {
	n := 0
	for _, obs := range d {
		n += len(obs)
	}
	return n
}

// FilterSpec holds the user-chosen constraints plus the observed bounds derived
// from the current dataset. Nil pointers mean "no constraint".
type FilterSpec struct {
	StartTime            *time.Time `json:"startTime,omitempty"`
	EndTime              *time.Time `json:"endTime,omitempty"`
	MinTemperature       *float64   `json:"minTemperature,omitempty"`
	MaxTemperature       *float64   `json:"maxTemperature,omitempty"`
	SelectedDescriptions []string   `json:"selectedDescriptions,omitempty"` // lower-cased

	// Derived from the dataset, never user-chosen.
	ObservedMinTime *time.Time `json:"observedMinTime,omitempty"`
	ObservedMaxTime *time.Time `json:"observedMaxTime,omitempty"`
}

// Normalize lower-cases, trims and de-duplicates the selected descriptions,
// keeping first-seen order.
func (f FilterSpec) Normalize() FilterSpec {
	if len(f.SelectedDescriptions) == 0 {
		f.SelectedDescriptions = nil
		return f
	}
	seen := make(map[string]struct{}, len(f.SelectedDescriptions))
	out := make([]string, 0, len(f.SelectedDescriptions))
	for _, d := range f.SelectedDescriptions {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	if len(out) == 0 {
		out = nil
	}
	f.SelectedDescriptions = out
	return f
}

// Clone returns a deep copy so callers can hand specs out without sharing state.
func (f FilterSpec) Clone() FilterSpec {
	c := f
	c.StartTime = cloneTime(f.StartTime)
	c.EndTime = cloneTime(f.EndTime)
	c.MinTemperature = cloneFloat(f.MinTemperature)
	c.MaxTemperature = cloneFloat(f.MaxTemperature)
	c.ObservedMinTime = cloneTime(f.ObservedMinTime)
	c.ObservedMaxTime = cloneTime(f.ObservedMaxTime)
	c.SelectedDescriptions = slices.Clone(f.SelectedDescriptions)
	return c
}

// WithObservedBounds returns a copy carrying the given derived bounds.
// Empty bounds clear the observed fields.
func (f FilterSpec) WithObservedBounds(b DateBounds) FilterSpec {
	f = f.Clone()
	if b.IsEmpty() {
		f.ObservedMinTime, f.ObservedMaxTime = nil, nil
		return f
	}
	lo, hi := b.Min, b.Max
	f.ObservedMinTime, f.ObservedMaxTime = &lo, &hi
	return f
}

// DateBounds is the min/max observed timestamp. The zero value is the
// "bounds unknown" sentinel.
type DateBounds struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// IsEmpty reports whether the bounds are the unknown sentinel.
func (b DateBounds) IsEmpty() bool {
	return b.Min.IsZero() && b.Max.IsZero()
}

// DescriptionCount is a description value and how often it occurs.
type DescriptionCount struct {
	Value  string `json:"value"`
	Amount int    `json:"amount"`
}

// DayPoint summarizes one city's observations for a single UTC day.
type DayPoint struct {
	Day            string      `json:"day"` // YYYY-MM-DD
	Date           time.Time   `json:"-"`
	MinTemperature Temperature `json:"minTemperature"`
	MaxTemperature Temperature `json:"maxTemperature"`
	AvgTemperature Temperature `json:"avgTemperature"`
	Description    string      `json:"description"`
	Location       string      `json:"location"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

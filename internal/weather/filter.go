package weather

import (
	"sort"
	"strings"
	"time"
)

// ApplyFilters returns a new Dataset holding, per city, the observations that
// satisfy every constraint in spec. Order is preserved and every input city is
// present in the output, possibly with an empty slice.
func ApplyFilters(data Dataset, spec FilterSpec) Dataset {
	spec = spec.Normalize()

	var wanted map[string]struct{}
	if len(spec.SelectedDescriptions) > 0 {
		wanted = make(map[string]struct{}, len(spec.SelectedDescriptions))
		for _, d := range spec.SelectedDescriptions {
			wanted[d] = struct{}{}
		}
	}

	out := make(Dataset, len(data))
	for city, observations := range data {
		kept := make([]Observation, 0, len(observations))
		for _, o := range observations {
			if matches(o, spec, wanted) {
				kept = append(kept, o)
			}
		}
		out[city] = kept
	}
	return out
}

func matches(o Observation, spec FilterSpec, wanted map[string]struct{}) bool {
	if !withinDates(o, spec.StartTime, spec.EndTime) {
		return false
	}

	temp := float64(o.Temperature)
	if spec.MinTemperature != nil && !(temp >= *spec.MinTemperature) {
		return false
	}
	if spec.MaxTemperature != nil && !(temp <= *spec.MaxTemperature) {
		return false
	}

	if wanted != nil {
		if _, ok := wanted[strings.ToLower(o.Description)]; !ok {
			return false
		}
	}
	return true
}

// withinDates applies the inclusive date constraints. An observation without a
// timestamp never satisfies a present constraint.
func withinDates(o Observation, start, end *time.Time) bool {
	if start == nil && end == nil {
		return true
	}
	if !o.HasTimestamp() {
		return false
	}
	if start != nil && o.Timestamp.Before(*start) {
		return false
	}
	if end != nil && o.Timestamp.After(*end) {
		return false
	}
	return true
}

// ComputeDateBounds returns the earliest and latest observation timestamps
// across all cities, or the empty sentinel when there are none.
func ComputeDateBounds(data Dataset) DateBounds {
	var b DateBounds
	for _, observations := range data {
		for _, o := range observations {
			if !o.HasTimestamp() {
				continue
			}
			if b.Min.IsZero() || o.Timestamp.Before(b.Min) {
				b.Min = o.Timestamp
			}
			if b.Max.IsZero() || o.Timestamp.After(b.Max) {
				b.Max = o.Timestamp
			}
		}
	}
	return b
}

// ComputeDescriptionFrequencies counts lower-cased descriptions among the
// observations inside the optional date range, ordered by count descending.
// Ties keep first-encountered order, walking cities in sorted order.
func ComputeDescriptionFrequencies(data Dataset, start, end *time.Time) []DescriptionCount {
	index := make(map[string]int)
	var counts []DescriptionCount

	for _, city := range data.Cities() {
		for _, o := range data[city] {
			if !withinDates(o, start, end) {
				continue
			}
			value := strings.ToLower(o.Description)
			if i, ok := index[value]; ok {
				counts[i].Amount++
				continue
			}
			index[value] = len(counts)
			counts = append(counts, DescriptionCount{Value: value, Amount: 1})
		}
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Amount > counts[j].Amount
	})
	return counts
}

// PruneDescriptions drops selected values that no longer occur in counts.
func PruneDescriptions(selected []string, counts []DescriptionCount) []string {
	if len(selected) == 0 {
		return nil
	}
	present := make(map[string]struct{}, len(counts))
	for _, c := range counts {
		present[c.Value] = struct{}{}
	}

	var kept []string
	for _, s := range selected {
		if _, ok := present[strings.ToLower(s)]; ok {
			kept = append(kept, strings.ToLower(s))
		}
	}
	return kept
}

package weather

import (
	"math"
	"sort"
	"time"
)

// AggregateByDay groups observations by UTC calendar day and returns one
// DayPoint per day, sorted ascending. Temperatures are averaged and the
// description is the most frequent one of the day (first seen wins a tie).
// A NaN temperature anywhere in a day makes that day's statistics NaN.
// Observations without a timestamp are skipped.
func AggregateByDay(observations []Observation) []DayPoint {
	type bucket struct {
		date     time.Time
		location string
		sum      float64
		n        int
		min, max float64
		hasNaN   bool
		order    []string
		freq     map[string]int
	}

	buckets := make(map[string]*bucket)
	for _, o := range observations {
		if !o.HasTimestamp() {
			continue
		}
		ts := o.Timestamp.UTC()
		key := ts.Format(time.DateOnly)

		b, ok := buckets[key]
		if !ok {
			b = &bucket{
				date:     time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
				location: o.Location,
				min:      math.Inf(1),
				max:      math.Inf(-1),
				freq:     make(map[string]int),
			}
			buckets[key] = b
		}

		t := float64(o.Temperature)
		if math.IsNaN(t) {
			b.hasNaN = true
		} else {
			b.sum += t
			b.min = math.Min(b.min, t)
			b.max = math.Max(b.max, t)
		}
		b.n++

		if _, seen := b.freq[o.Description]; !seen {
			b.order = append(b.order, o.Description)
		}
		b.freq[o.Description]++
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	points := make([]DayPoint, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]

		// Pick majority description.
		best, bestCount := "", 0
		for _, d := range b.order {
			if b.freq[d] > bestCount {
				best, bestCount = d, b.freq[d]
			}
		}

		p := DayPoint{
			Day:         k,
			Date:        b.date,
			Description: best,
			Location:    b.location,
		}
		if b.hasNaN {
			nan := Temperature(math.NaN())
			p.MinTemperature, p.MaxTemperature, p.AvgTemperature = nan, nan, nan
		} else {
			p.MinTemperature = Temperature(b.min)
			p.MaxTemperature = Temperature(b.max)
			p.AvgTemperature = Temperature(b.sum / float64(b.n))
		}
		points = append(points, p)
	}
	return points
}

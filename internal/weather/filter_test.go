package weather

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func obsAt(hours int, temp float64, desc string) Observation {
	return Observation{
		Timestamp:   base.Add(time.Duration(hours) * time.Hour),
		Location:    "Utrecht",
		Temperature: Temperature(temp),
		Description: desc,
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
func ptrFloat(f float64) *float64     { return &f }

func sampleDataset() Dataset {
	return Dataset{
		"Utrecht": {
			obsAt(0, 2, "clear sky"),
			obsAt(6, 5, "Light Rain"),
			obsAt(12, 8, "light rain"),
			obsAt(30, 1, "snow"),
		},
		"Veenendaal": {
			obsAt(1, 3, "mist"),
			{Location: "Veenendaal", Temperature: 4, Description: "fog"},
		},
		"Sao_Paulo": {},
	}
}

func TestApplyFilters_Identity(t *testing.T) {
	data := sampleDataset()

	got := ApplyFilters(data, FilterSpec{})

	require.Len(t, got, len(data))
	for city, obs := range data {
		assert.Equal(t, obs, got[city], city)
	}
	assert.NotNil(t, got["Sao_Paulo"])
	assert.Empty(t, got["Sao_Paulo"])
}

func TestApplyFilters_DoesNotMutateInput(t *testing.T) {
	data := sampleDataset()
	before := len(data["Utrecht"])

	_ = ApplyFilters(data, FilterSpec{MinTemperature: ptrFloat(100)})

	assert.Len(t, data["Utrecht"], before)
}

func TestApplyFilters_Predicates(t *testing.T) {
	data := sampleDataset()

	t.Run("date range is inclusive", func(t *testing.T) {
		got := ApplyFilters(data, FilterSpec{
			StartTime: ptrTime(base.Add(6 * time.Hour)),
			EndTime:   ptrTime(base.Add(12 * time.Hour)),
		})
		require.Len(t, got["Utrecht"], 2)
		assert.Empty(t, got["Veenendaal"])
	})

	t.Run("missing timestamp fails date predicates only", func(t *testing.T) {
		got := ApplyFilters(data, FilterSpec{StartTime: ptrTime(base.Add(-time.Hour))})
		assert.Len(t, got["Veenendaal"], 1)

		got = ApplyFilters(data, FilterSpec{MinTemperature: ptrFloat(4)})
		require.Len(t, got["Veenendaal"], 1)
		assert.Equal(t, "fog", got["Veenendaal"][0].Description)
	})

	t.Run("temperature bounds are inclusive", func(t *testing.T) {
		got := ApplyFilters(data, FilterSpec{MinTemperature: ptrFloat(2), MaxTemperature: ptrFloat(5)})
		require.Len(t, got["Utrecht"], 2)
		assert.Len(t, got["Veenendaal"], 2)
	})

	t.Run("descriptions match case-insensitively", func(t *testing.T) {
		got := ApplyFilters(data, FilterSpec{SelectedDescriptions: []string{"LIGHT RAIN"}})
		assert.Len(t, got["Utrecht"], 2)
		assert.Empty(t, got["Veenendaal"])
	})

	t.Run("inverted range yields nothing", func(t *testing.T) {
		got := ApplyFilters(data, FilterSpec{
			StartTime: ptrTime(base.Add(12 * time.Hour)),
			EndTime:   ptrTime(base),
		})
		assert.Zero(t, got.Len())
	})
}

func TestApplyFilters_NaNTemperatureFailsBounds(t *testing.T) {
	data := Dataset{"Utrecht": {{Timestamp: base, Temperature: Temperature(math.NaN())}}}

	assert.Len(t, ApplyFilters(data, FilterSpec{})["Utrecht"], 1)
	assert.Empty(t, ApplyFilters(data, FilterSpec{MinTemperature: ptrFloat(-100)})["Utrecht"])
	assert.Empty(t, ApplyFilters(data, FilterSpec{MaxTemperature: ptrFloat(100)})["Utrecht"])
}

func TestApplyFilters_DateRangeProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 200; i++ {
		data := Dataset{}
		for c := 0; c < 3; c++ {
			city := string(rune('A' + c))
			n := rng.IntN(40)
			for j := 0; j < n; j++ {
				data[city] = append(data[city], obsAt(rng.IntN(24*60)-24*30, rng.Float64()*40-10, "clear sky"))
			}
		}

		a := base.Add(time.Duration(rng.IntN(24*60)-24*30) * time.Hour)
		b := base.Add(time.Duration(rng.IntN(24*60)-24*30) * time.Hour)
		if b.Before(a) {
			a, b = b, a
		}

		got := ApplyFilters(data, FilterSpec{StartTime: &a, EndTime: &b})
		for city, obs := range got {
			for _, o := range obs {
				require.False(t, o.Timestamp.Before(a), "city %s: %s before %s", city, o.Timestamp, a)
				require.False(t, o.Timestamp.After(b), "city %s: %s after %s", city, o.Timestamp, b)
			}
		}
	}
}

func TestComputeDateBounds(t *testing.T) {
	t.Run("empty dataset gives sentinel", func(t *testing.T) {
		assert.True(t, ComputeDateBounds(Dataset{}).IsEmpty())
		assert.True(t, ComputeDateBounds(Dataset{"Utrecht": {}}).IsEmpty())
		assert.True(t, ComputeDateBounds(nil).IsEmpty())
	})

	t.Run("only untimestamped observations gives sentinel", func(t *testing.T) {
		assert.True(t, ComputeDateBounds(Dataset{"Utrecht": {{Description: "fog"}}}).IsEmpty())
	})

	t.Run("bounds are tight", func(t *testing.T) {
		data := sampleDataset()
		b := ComputeDateBounds(data)

		require.False(t, b.IsEmpty())
		assert.Equal(t, base, b.Min)
		assert.Equal(t, base.Add(30*time.Hour), b.Max)

		var sawMin, sawMax bool
		for _, obs := range data {
			for _, o := range obs {
				sawMin = sawMin || o.Timestamp.Equal(b.Min)
				sawMax = sawMax || o.Timestamp.Equal(b.Max)
			}
		}
		assert.True(t, sawMin)
		assert.True(t, sawMax)
	})
}

func TestComputeDescriptionFrequencies(t *testing.T) {
	t.Run("counts in descending order", func(t *testing.T) {
		data := Dataset{"Utrecht": {obsAt(0, 1, "rain"), obsAt(1, 1, "rain"), obsAt(2, 1, "snow")}}

		got := ComputeDescriptionFrequencies(data, ptrTime(base), ptrTime(base.Add(2*time.Hour)))

		assert.Equal(t, []DescriptionCount{{Value: "rain", Amount: 2}, {Value: "snow", Amount: 1}}, got)
	})

	t.Run("ties keep first-encountered order", func(t *testing.T) {
		data := Dataset{"Utrecht": {obsAt(0, 1, "snow"), obsAt(1, 1, "mist"), obsAt(2, 1, "Mist"), obsAt(3, 1, "snow")}}

		got := ComputeDescriptionFrequencies(data, nil, nil)

		assert.Equal(t, []DescriptionCount{{Value: "snow", Amount: 2}, {Value: "mist", Amount: 2}}, got)
	})

	t.Run("honors dates only", func(t *testing.T) {
		got := ComputeDescriptionFrequencies(sampleDataset(), ptrTime(base.Add(6*time.Hour)), nil)

		assert.Equal(t, []DescriptionCount{{Value: "light rain", Amount: 2}, {Value: "snow", Amount: 1}}, got)
	})

	t.Run("empty dataset", func(t *testing.T) {
		assert.Empty(t, ComputeDescriptionFrequencies(Dataset{}, nil, nil))
	})
}

func TestPruneDescriptions(t *testing.T) {
	counts := []DescriptionCount{{Value: "rain", Amount: 2}, {Value: "snow", Amount: 1}}

	assert.Equal(t, []string{"rain"}, PruneDescriptions([]string{"rain", "fog"}, counts))
	assert.Equal(t, []string{"snow"}, PruneDescriptions([]string{"Snow"}, counts))
	assert.Nil(t, PruneDescriptions([]string{"fog"}, counts))
	assert.Nil(t, PruneDescriptions(nil, counts))
}

func TestFilterSpec_Normalize(t *testing.T) {
	spec := FilterSpec{SelectedDescriptions: []string{" Rain", "rain", "", "SNOW"}}.Normalize()
	assert.Equal(t, []string{"rain", "snow"}, spec.SelectedDescriptions)

	assert.Nil(t, FilterSpec{SelectedDescriptions: []string{" "}}.Normalize().SelectedDescriptions)
}

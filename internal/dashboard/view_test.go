package dashboard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-archive/internal/archive"
	"github.com/i474232898/weather-archive/internal/weather"
)

func TestDerive_Empty(t *testing.T) {
	v := Derive(Snapshot{})

	assert.Empty(t, v.Table)
	assert.Empty(t, v.Descriptions)
	assert.Nil(t, v.Bounds)
	assert.Nil(t, v.QuickRanges)
	assert.Equal(t, weather.ThemeClear, v.Theme)
	assert.False(t, v.Status.FetchFailed)
	assert.Empty(t, v.Query)
}

func TestDerive_DescriptionsIgnoreNonDateFilters(t *testing.T) {
	data := sampleLoader().data
	end := base.Add(2 * time.Hour)
	snap := Snapshot{
		Selection: archive.Selection{Cities: []string{"Utrecht", "Veenendaal"}},
		Dataset:   data,
		Committed: weather.FilterSpec{
			EndTime:              &end,
			MinTemperature:       ptr(4.5),
			SelectedDescriptions: []string{"light rain"},
		},
		Now: base.Add(48 * time.Hour),
	}

	v := Derive(snap)

	require.Len(t, v.Descriptions, 3)
	assert.Equal(t, DescriptionOption{Value: "clear sky", Amount: 1, Emoji: weather.Emoji("clear sky")}, v.Descriptions[0])
	assert.Equal(t, "light rain", v.Descriptions[1].Value)
	assert.True(t, v.Descriptions[1].Selected)
	assert.Equal(t, "broken clouds", v.Descriptions[2].Value)

	require.Len(t, v.Table, 1)
	assert.Equal(t, weather.Temperature(5), v.Table[0].Temperature)
	assert.Equal(t, 1, v.LineChart.Total)
	assert.False(t, v.LineChart.Aggregated)

	// Theme follows the unfiltered dataset.
	assert.Equal(t, weather.ThemeRain, v.Theme)
	assert.Contains(t, v.Query, "minTemp=4.5")
}

func TestDerive_Status(t *testing.T) {
	v := Derive(Snapshot{LoadErr: errors.New("index unavailable"), Loading: true})

	assert.True(t, v.Status.Loading)
	assert.True(t, v.Status.FetchFailed)
	assert.Equal(t, "index unavailable", v.Status.Error)
}

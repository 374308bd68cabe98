package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAny(t *testing.T) {
	assert.True(t, HasAny("Light Rain", "drizzle", "rain"))
	assert.True(t, HasAny("overcast clouds", "CLOUD"))
	assert.False(t, HasAny("clear sky", "rain", "snow"))
	assert.False(t, HasAny("clear sky"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"Utrecht", "Sao_Paulo"}, SplitList(" Utrecht,, Sao_Paulo ,"))
	assert.Nil(t, SplitList(""))
}

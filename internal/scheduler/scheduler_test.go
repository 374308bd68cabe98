package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-archive/internal/observability"
	"github.com/i474232898/weather-archive/internal/weather"
)

type fakeCollector struct {
	mu     sync.Mutex
	cities []string
	fail   map[string]bool
}

func (c *fakeCollector) Collect(ctx context.Context, city string) (weather.Observation, error) {
	c.mu.Lock()
	c.cities = append(c.cities, city)
	c.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		return weather.Observation{}, errors.New("no job deadline")
	}
	if c.fail[city] {
		return weather.Observation{}, errors.New("providers down")
	}
	return weather.Observation{Location: city}, nil
}

func (c *fakeCollector) collected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.cities...)
}

func TestScheduler_RunOnce(t *testing.T) {
	c := &fakeCollector{fail: map[string]bool{"Sao_Paulo": true}}
	s := New([]string{"Veenendaal", "Sao_Paulo", "Utrecht"}, time.Hour, c, observability.DiscardLogger())

	archived := s.RunOnce(context.Background())

	assert.Equal(t, 2, archived)
	assert.ElementsMatch(t, []string{"Veenendaal", "Sao_Paulo", "Utrecht"}, c.collected())
}

func TestScheduler_StartRunsImmediately(t *testing.T) {
	c := &fakeCollector{}
	s := New([]string{"Utrecht"}, time.Hour, c, observability.DiscardLogger())

	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool { return len(c.collected()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_StartWithoutCities(t *testing.T) {
	c := &fakeCollector{}
	s := New(nil, time.Hour, c, observability.DiscardLogger())

	require.NoError(t, s.Start())
	s.Stop()

	assert.Empty(t, c.collected())
}

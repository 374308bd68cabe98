package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-archive/internal/weather"
)

// Collector archives one observation per city.
type Collector interface {
	Collect(ctx context.Context, city string) (weather.Observation, error)
}

// Scheduler periodically collects observations for the configured cities.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	collector  Collector
	cities     []string
	interval   time.Duration
	jobTimeout time.Duration
	logger     *slog.Logger
}

// New creates a new Scheduler.
func New(cities []string, interval time.Duration, collector Collector, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		collector:  collector,
		cities:     cities,
		interval:   interval,
		jobTimeout: 30 * time.Second,
		logger:     logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.cities) == 0 {
		s.logger.Warn("scheduler: no cities configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "every_minutes", minutes, "cities", s.cities)
	return nil
}

// RunOnce collects every city concurrently and returns the number of cities
// that were archived.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	s.logger.Info("scheduler: running collection job")

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, city := range s.cities {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
			defer cancel()

			if _, err := s.collector.Collect(ctx, city); err != nil {
				s.logger.Error("scheduler: collection failed", "city", city, "error", err)
				return
			}
			mu.Lock()
			ok++
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.logger.Info("scheduler: completed collection job", "archived", ok, "cities", len(s.cities))
	return ok
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

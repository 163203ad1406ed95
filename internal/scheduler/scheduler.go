package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/weather-snapshot/internal/weather"
)

// Refresher rebuilds and caches the snapshot for a coordinate.
type Refresher interface {
	Refresh(ctx context.Context, coord weather.Coordinate) (weather.WeatherSnapshot, error)
}

// Pruner removes expired cache entries.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}

// Scheduler periodically refreshes the cache for configured locations so reads,
// including the widget's cache-only reads, find fresh entries.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	pruner    Pruner
	locations []weather.Coordinate
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a new Scheduler. pruner may be nil.
func New(locations []weather.Coordinate, interval time.Duration, refresher Refresher, pruner Pruner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: refresher,
		pruner:    pruner,
		locations: locations,
		interval:  interval,
		timeout:   30 * time.Second,
		logger:    logger.With(zap.String("component", "scheduler")),
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 && s.pruner == nil {
		s.logger.Info("no locations configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	if _, err := s.scheduler.Every(minutes).Minutes().Do(s.RunOnce); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce refreshes every location concurrently, then prunes expired entries.
func (s *Scheduler) RunOnce() {
	s.logger.Info("running cache warm job", zap.Int("locations", len(s.locations)))

	var wg sync.WaitGroup
	for _, coord := range s.locations {
		wg.Add(1)
		go func(coord weather.Coordinate) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()

			if _, err := s.refresher.Refresh(ctx, coord); err != nil {
				s.logger.Warn("warm refresh failed", zap.Stringer("coord", coord), zap.Error(err))
			}
		}(coord)
	}
	wg.Wait()

	if s.pruner != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		n, err := s.pruner.Prune(ctx)
		if err != nil {
			s.logger.Warn("cache prune failed", zap.Error(err))
		} else if n > 0 {
			s.logger.Info("pruned expired cache entries", zap.Int64("entries", n))
		}
	}
	s.logger.Info("completed cache warm job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

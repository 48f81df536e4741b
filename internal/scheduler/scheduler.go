package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/wunderground-weather/internal/weather"
)

// Refresher runs one observation cycle for a station.
type Refresher interface {
	Refresh(ctx context.Context, stationID string) error
}

// Scheduler periodically refreshes observations for configured stations.
type Scheduler struct {
	scheduler    *gocron.Scheduler
	refresher    Refresher
	stations     []weather.Station
	interval     time.Duration
	cycleTimeout time.Duration
	logger       *slog.Logger
}

// New creates a new Scheduler. cycleTimeout bounds a single cycle; zero means
// the cycle is bounded by the interval.
func New(stations []weather.Station, interval, cycleTimeout time.Duration, refresher Refresher, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	if cycleTimeout <= 0 {
		cycleTimeout = interval
	}
	return &Scheduler{
		scheduler:    s,
		refresher:    refresher,
		stations:     stations,
		interval:     interval,
		cycleTimeout: cycleTimeout,
		logger:       logger.With("component", "scheduler"),
	}
}

// Start schedules one job per station and starts the underlying scheduler.
// Jobs run immediately, then every interval; a running cycle is never overlapped.
func (s *Scheduler) Start() error {
	if len(s.stations) == 0 {
		s.logger.Info("no stations configured; nothing to schedule")
		return nil
	}

	for _, st := range s.stations {
		stationID := st.ID
		_, err := s.scheduler.Every(s.interval).Tag(stationID).SingletonMode().Do(func() {
			s.run(stationID)
		})
		if err != nil {
			return err
		}
	}

	s.logger.Info("scheduler started", "stations", len(s.stations), "interval", s.interval)
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run(stationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cycleTimeout)
	defer cancel()

	// A failed cycle leaves the schedule intact; the next tick is the retry.
	if err := s.refresher.Refresh(ctx, stationID); err != nil {
		s.logger.Error("refresh failed", "station", stationID, "error", err)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

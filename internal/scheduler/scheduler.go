// Package scheduler runs the daily reservation-list close at a fixed local time.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is the work run once per day.
type Job func(ctx context.Context) error

// Config holds the schedule.
type Config struct {
	Location *time.Location
	// DailyHour and DailyMinute give the local run time.
	DailyHour   int
	DailyMinute int
	// Weekdays restricts the run to these days; empty means every day.
	Weekdays []time.Weekday
	// CheckInterval is how often to check if it's time to run.
	CheckInterval time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Scheduler triggers a Job once per matching day.
type Scheduler struct {
	config      Config
	job         Job
	logger      *zerolog.Logger
	mu          sync.Mutex
	lastRunDate string // YYYY-MM-DD of last run
	running     bool
	stopCh      chan struct{}
}

func New(config Config, job Job, logger *zerolog.Logger) *Scheduler {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = 20 * time.Second
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Scheduler{
		config: config,
		job:    job,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start runs the loop until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().
		Str("timezone", s.config.Location.String()).
		Str("daily_time", s.formatTime()).
		Msg("list scheduler started")

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("list scheduler stopped by context")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("list scheduler stopped")
			return
		case <-ticker.C:
			s.checkAndRun(ctx)
		}
	}
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
}

// checkAndRun runs the job when the local clock shows the configured minute
// and the job has not run yet today. It reports whether the job ran.
func (s *Scheduler) checkAndRun(ctx context.Context) bool {
	now := s.config.Now().In(s.config.Location)
	today := now.Format("2006-01-02")

	s.mu.Lock()
	alreadyRan := s.lastRunDate == today
	s.mu.Unlock()

	if alreadyRan || !s.isScheduledDay(now.Weekday()) {
		return false
	}
	if now.Hour() != s.config.DailyHour || now.Minute() != s.config.DailyMinute {
		return false
	}

	s.mu.Lock()
	s.lastRunDate = today
	s.mu.Unlock()

	s.logger.Info().Str("date", today).Msg("running daily list close")
	if err := s.job(ctx); err != nil {
		s.logger.Error().Err(err).Str("date", today).Msg("daily list close failed")
	}
	return true
}

func (s *Scheduler) isScheduledDay(wd time.Weekday) bool {
	if len(s.config.Weekdays) == 0 {
		return true
	}
	for _, d := range s.config.Weekdays {
		if d == wd {
			return true
		}
	}
	return false
}

func (s *Scheduler) formatTime() string {
	return time.Date(2000, 1, 1, s.config.DailyHour, s.config.DailyMinute, 0, 0, time.UTC).Format("15:04")
}


package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"store77/pricetracker/internal/scraper"
	"store77/pricetracker/logger"
)

// Runner executes one full scrape pass
type Runner interface {
	ScrapeAll(ctx context.Context) (scraper.Stats, error)
}

// Status is a snapshot of the tracker state
type Status struct {
	IsRunning  bool           `json:"isRunning"`
	LastRunAt  *time.Time     `json:"lastRunAt"`
	LastResult *scraper.Stats `json:"lastResult"`
}

// Scheduler triggers scrape runs on a cron schedule and on demand,
// guaranteeing at most one run at a time process-wide.
type Scheduler struct {
	runner   Runner
	schedule string
	log      *logger.Logger

	cron    *cron.Cron
	running atomic.Bool

	mu         sync.RWMutex
	lastRunAt  *time.Time
	lastResult *scraper.Stats
}

// New creates a scheduler. schedule uses cron syntax, e.g. "@every 10m".
func New(runner Runner, schedule string) *Scheduler {
	return &Scheduler{
		runner:   runner,
		schedule: schedule,
		log:      logger.ForComponent("scheduler"),
	}
}

// Start registers the cron entry and begins ticking
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		if stats := s.TriggerScrape(ctx); stats == nil {
			s.log.Warn().Msg("Skipping scheduled scrape, previous run still active")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Msg("Scheduler started")
	return nil
}

// Stop halts the cron ticker. A run already in flight is not interrupted.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.log.Info().Msg("Scheduler stopped")
}

// TriggerScrape runs a full scrape synchronously and returns its stats.
// If a run is already active it returns nil without starting another.
func (s *Scheduler) TriggerScrape(ctx context.Context) *scraper.Stats {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Msg("Scrape already running, trigger ignored")
		return nil
	}
	defer s.running.Store(false)

	startedAt := time.Now()
	stats, err := s.runner.ScrapeAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Scrape run failed")
		stats = scraper.Stats{Errors: 1}
	}

	s.mu.Lock()
	s.lastRunAt = &startedAt
	s.lastResult = &stats
	s.mu.Unlock()

	return &stats
}

// Status reports whether a run is active and the outcome of the last one
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		IsRunning:  s.running.Load(),
		LastRunAt:  s.lastRunAt,
		LastResult: s.lastResult,
	}
}

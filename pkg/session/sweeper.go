package session

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/jiya/internal/observability"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultIdleTTL is how long a session may sit untouched before eviction.
const DefaultIdleTTL = 24 * time.Hour

// Sweeper evicts idle sessions on a cron schedule. Without eviction the
// store grows with every call ever placed.
type Sweeper struct {
	store    Store
	ttl      time.Duration
	schedule string
	cron     *cron.Cron
	logger   zerolog.Logger
}

// NewSweeper creates a sweeper. A ttl of 0 falls back to DefaultIdleTTL;
// a negative ttl disables sweeping entirely.
func NewSweeper(store Store, ttl time.Duration, schedule string, logger zerolog.Logger) *Sweeper {
	if ttl == 0 {
		ttl = DefaultIdleTTL
	}
	if schedule == "" {
		schedule = "@every 5m"
	}

	return &Sweeper{
		store:    store,
		ttl:      ttl,
		schedule: schedule,
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}
}

// Start schedules the sweep job.
func (s *Sweeper) Start() error {
	if s.ttl < 0 {
		s.logger.Info().Msg("Session sweeping disabled")
		return nil
	}
	if s.cron != nil {
		return fmt.Errorf("sweeper is already running")
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c

	s.logger.Info().
		Dur("idle_ttl", s.ttl).
		Str("schedule", s.schedule).
		Msg("Session sweeper started")

	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron = nil

	s.logger.Info().Msg("Session sweeper stopped")
}

// SweepNow runs one sweep immediately.
func (s *Sweeper) SweepNow() (int, error) {
	removed, err := s.store.SweepIdle(context.Background(), s.ttl)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		observability.RecordSessionEviction(removed)
	}
	return removed, nil
}

func (s *Sweeper) sweep() {
	if _, err := s.SweepNow(); err != nil {
		s.logger.Error().Err(err).Msg("Session sweep failed")
	}
}

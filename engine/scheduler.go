package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// FastScheduler drives the continuous profile: a cycle every interval,
// around the clock. Day rollover is the ledger's concern, not the
// scheduler's.
type FastScheduler struct {
	orch     *Orchestrator
	interval time.Duration
	log      *slog.Logger
}

func NewFastScheduler(orch *Orchestrator, interval time.Duration, log *slog.Logger) *FastScheduler {
	if log == nil {
		log = slog.Default()
	}
	return &FastScheduler{
		orch:     orch,
		interval: interval,
		log:      log.With("component", "scheduler", "mode", "fast"),
	}
}

// Run cycles until ctx is cancelled. A cycle that overruns its interval is
// not queued behind itself; the overlap guard skips the tick.
func (s *FastScheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOne(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOne(ctx)
		}
	}
}

func (s *FastScheduler) runOne(ctx context.Context) {
	if err := s.orch.RunCycle(ctx); err != nil {
		if errors.Is(err, ErrCycleInProgress) || errors.Is(err, context.Canceled) {
			return
		}
		s.log.Error("cycle failed", "err", err)
	}
}

// SlowScheduler drives the market-hours profile with cron jobs in the
// exchange's timezone: a pre-market refresh at 9:00, intraday cycles from
// the 9:30 session open, and an end-of-day flatten shortly before the close.
type SlowScheduler struct {
	orch        *Orchestrator
	intervalMin int
	loc         *time.Location
	log         *slog.Logger
}

func NewSlowScheduler(orch *Orchestrator, intervalMin int, loc *time.Location, log *slog.Logger) *SlowScheduler {
	if intervalMin <= 0 {
		intervalMin = 5
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &SlowScheduler{
		orch:        orch,
		intervalMin: intervalMin,
		loc:         loc,
		log:         log.With("component", "scheduler", "mode", "slow"),
	}
}

// intradaySpecs returns the cron expressions for intraday cycles: the tail
// of the opening hour from the 9:30 session open, then the full 10:00-15:59
// hours. Nothing fires in the 9:00-9:29 pre-open window.
func intradaySpecs(intervalMin int) []string {
	return []string{
		fmt.Sprintf("30-59/%d 9 * * 1-5", intervalMin),
		fmt.Sprintf("*/%d 10-15 * * 1-5", intervalMin),
	}
}

// Run installs the cron jobs and blocks until ctx is cancelled. In-flight
// jobs are allowed to finish before Run returns.
func (s *SlowScheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.loc))

	cycle := func() {
		if err := s.orch.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleInProgress) && !errors.Is(err, context.Canceled) {
			s.log.Error("cycle failed", "err", err)
		}
	}
	specs := intradaySpecs(s.intervalMin)
	jobs := []struct {
		spec string
		name string
		fn   func()
	}{
		{"0 9 * * 1-5", "pre-market", func() { s.orch.PreMarket(ctx) }},
		{specs[0], "cycle-open", cycle},
		{specs[1], "cycle", cycle},
		{"50 15 * * 1-5", "end-of-day", func() {
			if err := s.orch.CloseAll(ctx); err != nil {
				s.log.Error("end of day flatten failed", "err", err)
			}
		}},
	}
	for _, j := range jobs {
		if _, err := c.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", j.name, j.spec, err)
		}
	}

	c.Start()
	s.log.Info("scheduler started", "interval_min", s.intervalMin, "tz", s.loc.String())

	<-ctx.Done()
	stop := c.Stop()
	<-stop.Done()
	s.log.Info("scheduler stopped")
	return ctx.Err()
}

package ingestion

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/narwhalmedia/simulcast/pkg/config"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
)

// Runner is one schedulable cycle.
type Runner interface {
	Run(ctx context.Context) (*Report, error)
}

// Scheduler triggers a runner on a fixed interval. A tick that lands while a cycle
// is still running is dropped.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   interfaces.Logger
	running  atomic.Bool
	runs     atomic.Int64
	dropped  atomic.Int64
}

// NewScheduler creates a new scheduler
func NewScheduler(runner Runner, interval time.Duration, logger interfaces.Logger) *Scheduler {
	if interval <= 0 {
		interval = config.DefaultIngestInterval
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled. The first cycle starts immediately. Cycles
// run inline so Run never returns while one is still in flight; ticks that fire
// during a long cycle are coalesced by the ticker.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started", interfaces.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped",
				interfaces.Int64("runs", s.runs.Load()),
				interfaces.Int64("dropped", s.dropped.Load()))
			return ctx.Err()
		case <-ticker.C:
			s.Trigger(ctx)
		}
	}
}

// Trigger runs one cycle unless one is already in flight. It reports whether the
// cycle ran.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.dropped.Add(1)
		s.logger.Warn("Previous ingestion run still in progress, skipping tick")
		return false
	}
	defer s.running.Store(false)

	s.runs.Add(1)
	if _, err := s.runner.Run(ctx); err != nil {
		s.logger.Error("Scheduled run failed", interfaces.Error(err))
	}
	return true
}

// Running reports whether a cycle is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

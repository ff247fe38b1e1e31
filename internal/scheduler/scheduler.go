package scheduler

import (
	"context"
	"log/slog"
	"time"

	"village_tracker/internal/domain"
)

// Runner defines the interface for triggering one ingestion run.
type Runner interface {
	RunOnce(ctx context.Context) (*domain.RunResult, error)
}

// Scheduler triggers a run on a fixed interval (daily in production). It is
// the only place holding a timer; the run service itself only reacts to
// explicit triggers.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewScheduler(runner Runner, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	// A failed run is reported and dropped; the next tick starts fresh.
	if _, err := s.runner.RunOnce(runCtx); err != nil {
		s.logger.Error("scheduled run failed", "error", err)
	}
}

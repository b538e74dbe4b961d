package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every poll cycle. A non-nil error stops the loop and
// is returned to the caller; the scheduler does not classify errors.
type TickFunc func(ctx context.Context) error

// Scheduler drives the poll loop on a fixed cadence. The delay between ticks
// is a plain sleep, not aligned to wall-clock buckets and not adaptive.
type Scheduler struct {
	interval time.Duration
	logger   zerolog.Logger
}

// New constructs a Scheduler instance.
func New(interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{interval: interval, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run invokes tick immediately and then once per interval until the context
// is cancelled or tick fails. Cancellation observed during the sleep means no
// further cycle starts.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := tick(ctx); err != nil {
			return err
		}

		s.logger.Debug().Dur("interval", s.interval).Msg("waiting for next poll")

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

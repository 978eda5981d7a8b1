package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Runner drives a Trigger from a local ticker.
type Runner struct {
	trigger  *Trigger
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// RunnerConfig holds configuration for a Runner.
type RunnerConfig struct {
	Trigger *Trigger
	// Interval between ticks.
	// Default: 1 minute
	Interval time.Duration
	Logger   zerolog.Logger
	// Now overrides the clock passed to EvaluateTick.
	Now func() time.Time
}

// NewRunner creates a new Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{
		trigger:  cfg.Trigger,
		interval: cfg.Interval,
		logger:   cfg.Logger.With().Str("component", "runner").Logger(),
		now:      cfg.Now,
	}
}

// Run ticks once immediately and then every interval until ctx is done.
// A slow tick does not delay the next one; ticks may overlap.
// Run waits for in-flight ticks before returning.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.interval).Msg("starting schedule runner")

	var wg sync.WaitGroup
	tick := func() {
		at := r.now()
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Errors are logged by the trigger and retried on the next tick.
			_, _ = r.trigger.EvaluateTick(ctx, at)
		}()
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	tick()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			r.logger.Info().Msg("schedule runner stopped")
			return nil
		case <-ticker.C:
			tick()
		}
	}
}

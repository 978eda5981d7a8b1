// Package worker runs the schedule trigger: the periodic evaluation that
// fires due schedules through the dispatcher.
package worker

import (
	"time"
)

// TriggerConfig holds configuration for the schedule trigger.
type TriggerConfig struct {
	// Concurrency is the number of schedules fired in parallel within a tick.
	// Default: 4
	Concurrency int

	// FireTimeout bounds a single schedule's delivery.
	// Default: 15 seconds
	FireTimeout time.Duration

	// TickTimeout bounds a whole tick, including bookkeeping.
	// Default: 50 seconds
	TickTimeout time.Duration

	// Rate caps deliveries per second within a tick. Zero disables pacing.
	Rate float64

	// Burst is the limiter burst when Rate is set.
	// Default: Concurrency
	Burst int
}

// DefaultTriggerConfig returns the default trigger configuration.
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		Concurrency: 4,
		FireTimeout: 15 * time.Second,
		TickTimeout: 50 * time.Second,
	}
}

func (c TriggerConfig) withDefaults() TriggerConfig {
	d := DefaultTriggerConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.FireTimeout <= 0 {
		c.FireTimeout = d.FireTimeout
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = d.TickTimeout
	}
	if c.Burst <= 0 {
		c.Burst = c.Concurrency
	}
	return c
}

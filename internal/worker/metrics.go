package worker

import (
	"sync"
	"time"
)

// TriggerMetrics tracks trigger statistics for the lifetime of the process.
type TriggerMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalTicks       int64
	AbandonedTicks   int64
	Fired            int64
	Delivered        int64
	DeliveryFailures int64
	Advanced         int64
	Stale            int64
	Skipped          int64

	// Timings
	LastTickAt       time.Time
	LastTickDuration time.Duration
	TotalDuration    time.Duration
}

func (m *TriggerMetrics) recordTick(result *TickResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalTicks++
	m.Fired += int64(result.Fired)
	m.Delivered += int64(result.Delivered)
	m.DeliveryFailures += int64(result.DeliveryFailed)
	m.Advanced += int64(result.Advanced)
	m.Stale += int64(result.Stale)
	m.Skipped += int64(result.Skipped)
	m.LastTickAt = result.EndTime
	m.LastTickDuration = result.Duration
	m.TotalDuration += result.Duration
}

func (m *TriggerMetrics) recordAbandoned(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalTicks++
	m.AbandonedTicks++
	m.LastTickAt = at
}

// GetMetrics returns a copy of the current metrics.
func (t *Trigger) GetMetrics() TriggerMetrics {
	t.metrics.mu.RLock()
	defer t.metrics.mu.RUnlock()

	return TriggerMetrics{
		TotalTicks:       t.metrics.TotalTicks,
		AbandonedTicks:   t.metrics.AbandonedTicks,
		Fired:            t.metrics.Fired,
		Delivered:        t.metrics.Delivered,
		DeliveryFailures: t.metrics.DeliveryFailures,
		Advanced:         t.metrics.Advanced,
		Stale:            t.metrics.Stale,
		Skipped:          t.metrics.Skipped,
		LastTickAt:       t.metrics.LastTickAt,
		LastTickDuration: t.metrics.LastTickDuration,
		TotalDuration:    t.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (t *Trigger) MetricsSnapshot() map[string]interface{} {
	m := t.GetMetrics()
	return map[string]interface{}{
		"total_ticks":        m.TotalTicks,
		"abandoned_ticks":    m.AbandonedTicks,
		"fired":              m.Fired,
		"delivered":          m.Delivered,
		"delivery_failures":  m.DeliveryFailures,
		"advanced":           m.Advanced,
		"stale":              m.Stale,
		"skipped":            m.Skipped,
		"last_tick_at":       m.LastTickAt,
		"last_tick_duration": m.LastTickDuration.String(),
		"total_duration":     m.TotalDuration.String(),
	}
}

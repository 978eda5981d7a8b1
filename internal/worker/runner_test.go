package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/pushrelay/internal/worker"
)

func TestRunner_TicksUntilCancelled(t *testing.T) {
	f := newFixture(t, worker.TriggerConfig{})
	f.create(t, "@every 1m", "ping")

	// Every tick sees a clock one minute further on, so each one fires.
	now := t0
	nowFn := func() time.Time {
		now = now.Add(time.Minute)
		return now
	}

	runner := worker.NewRunner(worker.RunnerConfig{
		Trigger:  f.trigger,
		Interval: 10 * time.Millisecond,
		Logger:   zerolog.Nop(),
		Now:      nowFn,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.trigger.GetMetrics().TotalTicks >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}

	assert.NotEmpty(t, f.deliverer.Calls())
}

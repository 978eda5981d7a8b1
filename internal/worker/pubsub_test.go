package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/pushrelay/pushrelay/internal/schedule"
)

type countingStore struct {
	listCalls atomic.Int32
	lastNow   atomic.Value
	err       error
}

func (s *countingStore) ListDue(_ context.Context, now time.Time) ([]*schedule.Schedule, error) {
	s.listCalls.Add(1)
	s.lastNow.Store(now)
	return nil, s.err
}

func (s *countingStore) AdvanceNextFire(context.Context, string, time.Time, time.Time) (bool, error) {
	return false, nil
}

func newTestHandler(store ScheduleStore) *PubSubHandler {
	trigger := NewTrigger(TriggerOptions{Store: store, Logger: zerolog.Nop()})
	return newPubSubHandler(trigger, zerolog.Nop())
}

func TestProcess_ScheduleTick(t *testing.T) {
	store := &countingStore{}
	h := newTestHandler(store)
	pinned := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	ack := h.process(context.Background(), []byte(`{"job_type":"schedule_tick","now":"2024-06-01T09:00:00Z"}`), zerolog.Nop())
	assert.True(t, ack)
	assert.Equal(t, int32(1), store.listCalls.Load())
	assert.True(t, pinned.Equal(store.lastNow.Load().(time.Time)))

	ack = h.process(context.Background(), []byte(`{"job_type":"schedule_tick"}`), zerolog.Nop())
	assert.True(t, ack)
	assert.False(t, store.lastNow.Load().(time.Time).IsZero())
}

func TestProcess_FailedTickIsRedelivered(t *testing.T) {
	h := newTestHandler(&countingStore{err: errors.New("store down")})

	assert.False(t, h.process(context.Background(), []byte(`{"job_type":"schedule_tick"}`), zerolog.Nop()))
	assert.False(t, h.process(context.Background(), []byte(`{"job_type":"health_check"}`), zerolog.Nop()))
}

func TestProcess_DropsUnknownAndMalformed(t *testing.T) {
	store := &countingStore{}
	h := newTestHandler(store)

	assert.True(t, h.process(context.Background(), []byte(`{"job_type":"purge_devices"}`), zerolog.Nop()))
	assert.True(t, h.process(context.Background(), []byte(`not json`), zerolog.Nop()))
	assert.Zero(t, store.listCalls.Load())
}

func TestProcess_HealthCheck(t *testing.T) {
	store := &countingStore{}
	h := newTestHandler(store)

	assert.True(t, h.process(context.Background(), []byte(`{"job_type":"health_check"}`), zerolog.Nop()))
	assert.Equal(t, int32(1), store.listCalls.Load())
}

func TestClose_WithoutClient(t *testing.T) {
	h := newTestHandler(&countingStore{})
	assert.NoError(t, h.Close())
}

package schedule_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/pushrelay/internal/apperr"
	"github.com/pushrelay/pushrelay/internal/schedule"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeDevices struct {
	known map[string]bool
	err   error
}

func (d fakeDevices) Exists(_ context.Context, key string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return d.known[key], nil
}

var t0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*schedule.Service, *schedule.InMemoryRepository, *fakeClock) {
	t.Helper()
	repo := schedule.NewInMemoryRepository()
	clock := &fakeClock{now: t0}
	svc := schedule.NewService(schedule.ServiceConfig{
		Repo:    repo,
		Devices: fakeDevices{known: map[string]bool{"d1": true, "d2": true}},
		Logger:  zerolog.Nop(),
		Now:     clock.Now,
	})
	return svc, repo, clock
}

func strPtr(s string) *string { return &s }

func TestCreate_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	created, err := svc.Create(ctx, schedule.CreateInput{
		DeviceKey:      "d1",
		CronExpression: "@every 1m",
		Payload:        schedule.Payload{Title: "status", Body: "ping"},
	})
	require.NoError(t, err)
	assert.Contains(t, created.ID, "sch_")
	assert.True(t, created.Enabled)
	require.NotNil(t, created.NextFireAt)
	assert.Equal(t, t0.Add(time.Minute), *created.NextFireAt)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "@every 1m", got.CronExpression)
	assert.Equal(t, schedule.Payload{Title: "status", Body: "ping"}, got.Payload)
	assert.Equal(t, created.NextFireAt, got.NextFireAt)
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t)

	tests := []struct {
		name  string
		input schedule.CreateInput
		field string
	}{
		{"unknown device", schedule.CreateInput{DeviceKey: "nope", CronExpression: "* * * * *", Payload: schedule.Payload{Body: "x"}}, "device_key"},
		{"bad cron", schedule.CreateInput{DeviceKey: "d1", CronExpression: "every minute", Payload: schedule.Payload{Body: "x"}}, "cron_expression"},
		{"missing cron", schedule.CreateInput{DeviceKey: "d1", Payload: schedule.Payload{Body: "x"}}, "cron_expression"},
		{"missing body", schedule.CreateInput{DeviceKey: "d1", CronExpression: "* * * * *"}, "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.input)
			var ve *apperr.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Errors[0].Field)
		})
	}

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreate_DeviceStorageFailureSurfaces(t *testing.T) {
	svc := schedule.NewService(schedule.ServiceConfig{
		Repo:    schedule.NewInMemoryRepository(),
		Devices: fakeDevices{err: apperr.Storage("device.get", errors.New("timeout"))},
		Logger:  zerolog.Nop(),
	})

	_, err := svc.Create(context.Background(), schedule.CreateInput{
		DeviceKey: "d1", CronExpression: "* * * * *", Payload: schedule.Payload{Body: "x"},
	})
	assert.True(t, apperr.IsStorage(err))
	assert.False(t, apperr.IsValidation(err))
}

func TestList_CreationOrder(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	var ids []string
	for _, body := range []string{"a", "b", "c", "d"} {
		s, err := svc.Create(ctx, schedule.CreateInput{DeviceKey: "d1", CronExpression: "@hourly", Payload: schedule.Payload{Body: body}})
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, s := range all {
		assert.Equal(t, ids[i], s.ID)
	}
}

func TestUpdate_RecomputesOnCronChange(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)

	s, err := svc.Create(ctx, schedule.CreateInput{DeviceKey: "d1", CronExpression: "@hourly", Payload: schedule.Payload{Body: "x"}})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), *s.NextFireAt)

	clock.Advance(10 * time.Second)
	updated, err := svc.Update(ctx, s.ID, schedule.UpdateInput{CronExpression: strPtr("*/5 * * * *")})
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", updated.CronExpression)
	assert.Equal(t, t0.Add(5*time.Minute), *updated.NextFireAt)
	assert.Equal(t, t0.Add(10*time.Second), updated.UpdatedAt)
	assert.Equal(t, t0, updated.CreatedAt)
}

func TestUpdate_RecomputesOnPayloadChange(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)

	s, err := svc.Create(ctx, schedule.CreateInput{DeviceKey: "d1", CronExpression: "@every 1m", Payload: schedule.Payload{Body: "x"}})
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	updated, err := svc.Update(ctx, s.ID, schedule.UpdateInput{Body: strPtr("y"), Title: strPtr("t")})
	require.NoError(t, err)
	assert.Equal(t, schedule.Payload{Title: "t", Body: "y"}, updated.Payload)
	assert.Equal(t, t0.Add(90*time.Second), *updated.NextFireAt)
}

func TestUpdate_KeepsConcurrentAdvance(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	s, err := svc.Create(ctx, schedule.CreateInput{DeviceKey: "d1", CronExpression: "@every 1m", Payload: schedule.Payload{Body: "x"}})
	require.NoError(t, err)

	advanced := s.NextFireAt.Add(time.Minute)
	ok, err := svc.AdvanceNextFire(ctx, s.ID, *s.NextFireAt, advanced)
	require.NoError(t, err)
	require.True(t, ok)

	updated, err := svc.Update(ctx, s.ID, schedule.UpdateInput{DeviceKey: strPtr("d2")})
	require.NoError(t, err)
	assert.Equal(t, "d2", updated.DeviceKey)
	assert.Equal(t, advanced, *updated.NextFireAt)
}

func TestUpdate_DisabledScheduleStaysDisabled(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	s, err := svc.Create(ctx, schedule.CreateInput{DeviceKey: "d1", CronExpression: "@hourly", Payload: schedule.Payload{Body: "x"}})
	require.NoError(t, err)
	_, err = svc.SetEnabled(ctx, s.ID, false)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, s.ID, schedule.UpdateInput{CronExpression: strPtr("@daily")})
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
	assert.Nil(t, updated.NextFireAt)
}

// toggleOnReadRepo flips the schedule's enabled flag through another service
// right after Update reads it, simulating a concurrent toggle.
type toggleOnReadRepo struct {
	*schedule.InMemoryRepository
	toggle func(id string)
	once   sync.Once
}

func (r *toggleOnReadRepo) Get(ctx context.Context, id string) (*schedule.Schedule, error) {
	s, err := r.InMemoryRepository.Get(ctx, id)
	if err == nil {
		r.once.Do(func() { r.toggle(id) })
	}
	return s, err
}

func TestUpdate_ConcurrentDisableWins(t *testing.T) {
	ctx := context.Background()
	_, repo, clock := newTestService(t)
	other := schedule.NewService(schedule.ServiceConfig{Repo: repo, Logger: zerolog.Nop(), Now: clock.Now})

	s, err := other.Create(ctx, schedule.CreateInput{DeviceKey: "d1", CronExpression: "@hourly", Payload: schedule.Payload{Body: "x"}})
	require.NoError(t, err)

	racing := &toggleOnReadRepo{InMemoryRepository: repo, toggle: func(id string) {
		_, err := other.SetEnabled(ctx, id, false)
		require.NoError(t, err)
	}}
	svc := schedule.NewService(schedule.ServiceConfig{Repo: racing, Logger: zerolog.Nop(), Now: clock.Now})

	updated, err := svc.Update(ctx, s.ID, schedule.UpdateInput{Body: strPtr("y")})
	require.NoError(t, err)
	assert.Equal(t, "y", updated.Payload.Body)
	assert.False(t, updated.Enabled)
	assert.Nil(t, updated.NextFireAt)

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Nil(t, got.NextFireAt)

	due, err := repo.ListDue(ctx, t0.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestUpdate_ConcurrentEnableUsesNewCron(t *testing.T) {
	ctx := context.Background()
	_, repo, clock := newTestService(t)
	other := schedule.NewService(schedule.ServiceConfig{Repo: repo, Logger: zerolog.Nop(), Now: clock.Now})

	s, err := other.Create(ctx, schedule.CreateInput{DeviceKey: "d1", CronExpression: "@daily", Payload: schedule.Payload{Body: "x"}})
	require.NoError(t, err)
	_, err = other.SetEnabled(ctx, s.ID, false)
	require.NoError(t, err)

	racing := &toggleOnReadRepo{InMemoryRepository: repo, toggle: func(id string) {
		_, err := other.SetEnabled(ctx, id, true)
		require.NoError(t, err)
	}}
	svc := schedule.NewService(schedule.ServiceConfig{Repo: racing, Logger: zerolog.Nop(), Now: clock.Now})

	updated, err := svc.Update(ctx, s.ID, schedule.UpdateInput{CronExpression: strPtr("@hourly")})
	require.NoError(t, err)
	assert.True(t, updated.Enabled)
	require.NotNil(t, updated.NextFireAt)
	assert.Equal(t, t0.Add(time.Hour), *updated.NextFireAt)
}

func TestUpdate_Errors(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.Update(ctx, "sch_missing", schedule.UpdateInput{Body: strPtr("x")})
	assert.ErrorIs(t, err, schedule.ErrScheduleNotFound)

	s, err := svc.Create(ctx, schedule.CreateInput{DeviceKey: "d1", CronExpression: "@hourly", Payload: schedule.Payload{Body: "x"}})
	require.NoError(t, err)

	_, err = svc.Update(ctx, s.ID, schedule.UpdateInput{CronExpression: strPtr("61 * * * *")})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.Update(ctx, s.ID, schedule.UpdateInput{Body: strPtr("")})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.Update(ctx, s.ID, schedule.UpdateInput{DeviceKey: strPtr("ghost")})
	assert.True(t, apperr.IsValidation(err))

	got, err := svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "@hourly", got.CronExpression)
	assert.Equal(t, "x", got.Payload.Body)
	assert.Equal(t, "d1", got.DeviceKey)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	s, err := svc.Create(ctx, schedule.CreateInput{DeviceKey: "d1", CronExpression: "@hourly", Payload: schedule.Payload{Body: "x"}})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, s.ID))
	err = svc.Delete(ctx, s.ID)
	assert.ErrorIs(t, err, schedule.ErrScheduleNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetEnabled(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)

	s, err := svc.Create(ctx, schedule.CreateInput{DeviceKey: "d1", CronExpression: "@every 1m", Payload: schedule.Payload{Body: "x"}})
	require.NoError(t, err)

	disabled, err := svc.SetEnabled(ctx, s.ID, false)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)
	assert.Nil(t, disabled.NextFireAt)

	clock.Advance(5 * time.Minute)
	due, err := svc.ListDue(ctx, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, due)

	enabled, err := svc.SetEnabled(ctx, s.ID, true)
	require.NoError(t, err)
	assert.True(t, enabled.Enabled)
	assert.Equal(t, t0.Add(6*time.Minute), *enabled.NextFireAt)

	_, err = svc.SetEnabled(ctx, "sch_missing", true)
	assert.ErrorIs(t, err, schedule.ErrScheduleNotFound)
}

func TestListDue_OldestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)

	hourly, err := svc.Create(ctx, schedule.CreateInput{DeviceKey: "d1", CronExpression: "@hourly", Payload: schedule.Payload{Body: "h"}})
	require.NoError(t, err)
	minutely, err := svc.Create(ctx, schedule.CreateInput{DeviceKey: "d1", CronExpression: "* * * * *", Payload: schedule.Payload{Body: "m"}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, schedule.CreateInput{DeviceKey: "d1", CronExpression: "@daily", Payload: schedule.Payload{Body: "d"}})
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	due, err := svc.ListDue(ctx, clock.Now())
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, minutely.ID, due[0].ID)
	assert.Equal(t, hourly.ID, due[1].ID)
}

func TestAdvanceNextFire_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	s, err := svc.Create(ctx, schedule.CreateInput{DeviceKey: "d1", CronExpression: "@every 1m", Payload: schedule.Payload{Body: "x"}})
	require.NoError(t, err)
	first := *s.NextFireAt

	ok, err := svc.AdvanceNextFire(ctx, s.ID, first, first.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	// A stale tick still holding the old value loses.
	ok, err = svc.AdvanceNextFire(ctx, s.ID, first, first.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Add(time.Minute), *got.NextFireAt)

	_, err = svc.SetEnabled(ctx, s.ID, false)
	require.NoError(t, err)
	ok, err = svc.AdvanceNextFire(ctx, s.ID, first.Add(time.Minute), first.Add(3*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.AdvanceNextFire(ctx, s.ID, first, first)
	assert.True(t, apperr.IsValidation(err))
}

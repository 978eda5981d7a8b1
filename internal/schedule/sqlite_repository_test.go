package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/pushrelay/internal/database"
	"github.com/pushrelay/pushrelay/internal/schedule"
)

func TestSQLiteRepository(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := schedule.NewSQLiteRepository(db)
	next := t0.Add(time.Minute)

	s := &schedule.Schedule{
		ID:             "sch_one",
		DeviceKey:      "d1",
		CronExpression: "@every 1m",
		Payload:        schedule.Payload{Category: "c", Title: "t", Body: "b"},
		Enabled:        true,
		NextFireAt:     &next,
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	due, err := repo.ListDue(ctx, t0)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = repo.ListDue(ctx, next)
	require.NoError(t, err)
	require.Len(t, due, 1)

	ok, err := repo.AdvanceNextFire(ctx, s.ID, next, next.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.AdvanceNextFire(ctx, s.ID, next, next.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	// Update without fire state leaves the advanced value alone.
	got.Payload.Body = "changed"
	got.NextFireAt = &next
	require.NoError(t, repo.Update(ctx, got, false))
	stored, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", stored.Payload.Body)
	assert.Equal(t, next.Add(time.Minute), *stored.NextFireAt)

	stored.Enabled = false
	stored.NextFireAt = nil
	require.NoError(t, repo.SetEnabled(ctx, stored))
	stored, err = repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
	assert.Nil(t, stored.NextFireAt)

	// Rescheduling a disabled row keeps it disabled and unscheduled.
	stale := *got
	stale.Enabled = true
	stale.NextFireAt = &next
	require.NoError(t, repo.Update(ctx, &stale, true))
	stored, err = repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
	assert.Nil(t, stored.NextFireAt)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Delete(ctx, s.ID))
	assert.ErrorIs(t, repo.Delete(ctx, s.ID), schedule.ErrScheduleNotFound)
	_, err = repo.Get(ctx, s.ID)
	assert.ErrorIs(t, err, schedule.ErrScheduleNotFound)
	assert.ErrorIs(t, repo.Update(ctx, s, true), schedule.ErrScheduleNotFound)
	assert.ErrorIs(t, repo.SetEnabled(ctx, s), schedule.ErrScheduleNotFound)
}

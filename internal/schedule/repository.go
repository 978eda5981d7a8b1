package schedule

import (
	"context"
	"time"
)

// Repository defines the interface for schedule persistence.
// Implementations return ErrScheduleNotFound for unknown ids and wrap backend
// failures in apperr.StorageError.
type Repository interface {
	// Get retrieves a schedule by ID.
	Get(ctx context.Context, id string) (*Schedule, error)

	// List returns all schedules in creation order.
	List(ctx context.Context) ([]*Schedule, error)

	// Create stores a new schedule.
	Create(ctx context.Context, s *Schedule) error

	// Update writes the device key, cron expression, payload and UpdatedAt of s.
	// Enabled is never written here; SetEnabled owns it. When reschedule is
	// true, NextFireAt is replaced by s.NextFireAt only if the stored schedule
	// is still enabled, otherwise the stored NextFireAt is kept.
	Update(ctx context.Context, s *Schedule, reschedule bool) error

	// SetEnabled writes Enabled, NextFireAt and UpdatedAt of s.
	SetEnabled(ctx context.Context, s *Schedule) error

	// Delete deletes a schedule by ID.
	Delete(ctx context.Context, id string) error

	// ListDue returns enabled schedules with NextFireAt <= now, oldest first.
	ListDue(ctx context.Context, now time.Time) ([]*Schedule, error)

	// AdvanceNextFire sets NextFireAt to next only if the schedule is still
	// enabled and its NextFireAt equals expected. It reports whether the
	// swap happened.
	AdvanceNextFire(ctx context.Context, id string, expected, next time.Time) (bool, error)
}

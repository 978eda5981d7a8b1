package schedule

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and single-process development.
type InMemoryRepository struct {
	mu        sync.RWMutex
	schedules map[string]*memoryRow
	seq       int64
}

type memoryRow struct {
	seq      int64
	schedule *Schedule
}

// NewInMemoryRepository creates a new in-memory schedule repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		schedules: make(map[string]*memoryRow),
	}
}

// Get retrieves a schedule by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return row.schedule.clone(), nil
}

// List returns all schedules in creation order.
func (r *InMemoryRepository) List(_ context.Context) ([]*Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.filterRows(func(*Schedule) bool { return true })
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	return cloneRows(rows), nil
}

// Create stores a new schedule.
func (r *InMemoryRepository) Create(_ context.Context, s *Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.schedules[s.ID] = &memoryRow{seq: r.seq, schedule: s.clone()}
	return nil
}

// Update writes the mutable fields of s, leaving Enabled as stored.
func (r *InMemoryRepository) Update(_ context.Context, s *Schedule, reschedule bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.schedules[s.ID]
	if !ok {
		return ErrScheduleNotFound
	}

	stored := s.clone()
	stored.CreatedAt = row.schedule.CreatedAt
	stored.Enabled = row.schedule.Enabled
	if !reschedule || !row.schedule.Enabled {
		stored.NextFireAt = row.schedule.clone().NextFireAt
	}
	row.schedule = stored
	return nil
}

// SetEnabled writes the enabled flag and fire state of s.
func (r *InMemoryRepository) SetEnabled(_ context.Context, s *Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.schedules[s.ID]
	if !ok {
		return ErrScheduleNotFound
	}

	stored := row.schedule.clone()
	stored.Enabled = s.Enabled
	stored.NextFireAt = s.clone().NextFireAt
	stored.UpdatedAt = s.UpdatedAt
	row.schedule = stored
	return nil
}

// Delete deletes a schedule by ID.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[id]; !ok {
		return ErrScheduleNotFound
	}
	delete(r.schedules, id)
	return nil
}

// ListDue returns enabled schedules with NextFireAt <= now, oldest first.
func (r *InMemoryRepository) ListDue(_ context.Context, now time.Time) ([]*Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.filterRows(func(s *Schedule) bool { return s.IsDue(now) })
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].schedule.NextFireAt, rows[j].schedule.NextFireAt
		if !a.Equal(*b) {
			return a.Before(*b)
		}
		return rows[i].seq < rows[j].seq
	})

	return cloneRows(rows), nil
}

// AdvanceNextFire compares and swaps NextFireAt.
func (r *InMemoryRepository) AdvanceNextFire(_ context.Context, id string, expected, next time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.schedules[id]
	if !ok {
		return false, nil
	}
	s := row.schedule
	if !s.Enabled || s.NextFireAt == nil || !s.NextFireAt.Equal(expected) {
		return false, nil
	}

	t := next
	s.NextFireAt = &t
	return true, nil
}

func (r *InMemoryRepository) filterRows(keep func(*Schedule) bool) []*memoryRow {
	rows := make([]*memoryRow, 0, len(r.schedules))
	for _, row := range r.schedules {
		if keep(row.schedule) {
			rows = append(rows, row)
		}
	}
	return rows
}

func cloneRows(rows []*memoryRow) []*Schedule {
	out := make([]*Schedule, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.schedule.clone())
	}
	return out
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)

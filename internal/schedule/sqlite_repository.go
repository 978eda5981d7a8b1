package schedule

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pushrelay/pushrelay/internal/apperr"
)

const sqliteScheduleColumns = `
	id, device_key, cron_expression,
	category, title, body,
	enabled, next_fire_at, created_at, updated_at
`

// SQLiteRepository is a SQLite implementation of Repository.
// Timestamps are stored as unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite schedule repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get retrieves a schedule by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Schedule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteScheduleColumns+` FROM schedules WHERE id = ?`, id)
	s, err := scanSQLiteSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, apperr.Storage("schedule.get", err)
	}
	return s, nil
}

// List returns all schedules in creation order.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Schedule, error) {
	return r.query(ctx, "schedule.list", `SELECT `+sqliteScheduleColumns+` FROM schedules ORDER BY seq ASC`)
}

// Create stores a new schedule.
func (r *SQLiteRepository) Create(ctx context.Context, s *Schedule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO schedules (
			id, device_key, cron_expression,
			category, title, body,
			enabled, next_fire_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.DeviceKey, s.CronExpression,
		s.Payload.Category, s.Payload.Title, s.Payload.Body,
		s.Enabled, toMillis(s.NextFireAt), s.CreatedAt.UnixMilli(), s.UpdatedAt.UnixMilli(),
	)
	return apperr.Storage("schedule.create", err)
}

// Update writes the mutable fields of s, leaving enabled as stored.
func (r *SQLiteRepository) Update(ctx context.Context, s *Schedule, reschedule bool) error {
	query := `
		UPDATE schedules SET
			device_key = ?, cron_expression = ?,
			category = ?, title = ?, body = ?,
			updated_at = ?
		WHERE id = ?`
	args := []interface{}{
		s.DeviceKey, s.CronExpression,
		s.Payload.Category, s.Payload.Title, s.Payload.Body,
		s.UpdatedAt.UnixMilli(),
		s.ID,
	}
	if reschedule {
		query = `
			UPDATE schedules SET
				device_key = ?, cron_expression = ?,
				category = ?, title = ?, body = ?,
				updated_at = ?,
				next_fire_at = CASE WHEN enabled THEN ? ELSE next_fire_at END
			WHERE id = ?`
		args = []interface{}{
			s.DeviceKey, s.CronExpression,
			s.Payload.Category, s.Payload.Title, s.Payload.Body,
			s.UpdatedAt.UnixMilli(), toMillis(s.NextFireAt),
			s.ID,
		}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperr.Storage("schedule.update", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperr.Storage("schedule.update", err)
	}
	if n == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// SetEnabled writes the enabled flag and fire state of s.
func (r *SQLiteRepository) SetEnabled(ctx context.Context, s *Schedule) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE schedules SET enabled = ?, next_fire_at = ?, updated_at = ?
		WHERE id = ?`,
		s.Enabled, toMillis(s.NextFireAt), s.UpdatedAt.UnixMilli(), s.ID,
	)
	if err != nil {
		return apperr.Storage("schedule.set_enabled", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperr.Storage("schedule.set_enabled", err)
	}
	if n == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// Delete deletes a schedule by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return apperr.Storage("schedule.delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperr.Storage("schedule.delete", err)
	}
	if n == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// ListDue returns enabled schedules with NextFireAt <= now, oldest first.
func (r *SQLiteRepository) ListDue(ctx context.Context, now time.Time) ([]*Schedule, error) {
	return r.query(ctx, "schedule.list_due", `SELECT `+sqliteScheduleColumns+`
		FROM schedules
		WHERE enabled = 1 AND next_fire_at IS NOT NULL AND next_fire_at <= ?
		ORDER BY next_fire_at ASC, seq ASC`, now.UnixMilli())
}

// AdvanceNextFire compares and swaps next_fire_at.
func (r *SQLiteRepository) AdvanceNextFire(ctx context.Context, id string, expected, next time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE schedules SET next_fire_at = ? WHERE id = ? AND enabled = 1 AND next_fire_at = ?`,
		next.UnixMilli(), id, expected.UnixMilli(),
	)
	if err != nil {
		return false, apperr.Storage("schedule.advance", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, apperr.Storage("schedule.advance", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) query(ctx context.Context, op, query string, args ...interface{}) ([]*Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Schedule
	for rows.Next() {
		s, err := scanSQLiteSchedule(rows)
		if err != nil {
			return nil, apperr.Storage(op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(op, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteSchedule(row rowScanner) (*Schedule, error) {
	var (
		s                    Schedule
		nextFire             sql.NullInt64
		createdMS, updatedMS int64
	)
	err := row.Scan(
		&s.ID, &s.DeviceKey, &s.CronExpression,
		&s.Payload.Category, &s.Payload.Title, &s.Payload.Body,
		&s.Enabled, &nextFire, &createdMS, &updatedMS,
	)
	if err != nil {
		return nil, err
	}
	if nextFire.Valid {
		t := time.UnixMilli(nextFire.Int64).UTC()
		s.NextFireAt = &t
	}
	s.CreatedAt = time.UnixMilli(createdMS).UTC()
	s.UpdatedAt = time.UnixMilli(updatedMS).UTC()
	return &s, nil
}

func toMillis(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

// Ensure SQLiteRepository implements Repository interface.
var _ Repository = (*SQLiteRepository)(nil)

package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pushrelay/pushrelay/internal/apperr"
)

const pgScheduleColumns = `
	id, device_key, cron_expression,
	category, title, body,
	enabled, next_fire_at, created_at, updated_at
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL schedule repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves a schedule by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Schedule, error) {
	query := `SELECT ` + pgScheduleColumns + ` FROM schedules WHERE id = $1`

	s, err := scanSchedule(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, apperr.Storage("schedule.get", err)
	}
	return s, nil
}

// List returns all schedules in creation order.
func (r *PostgresRepository) List(ctx context.Context) ([]*Schedule, error) {
	query := `SELECT ` + pgScheduleColumns + ` FROM schedules ORDER BY seq ASC`
	return r.query(ctx, "schedule.list", query)
}

// Create stores a new schedule.
func (r *PostgresRepository) Create(ctx context.Context, s *Schedule) error {
	query := `
		INSERT INTO schedules (
			id, device_key, cron_expression,
			category, title, body,
			enabled, next_fire_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.DeviceKey,
		s.CronExpression,
		s.Payload.Category,
		s.Payload.Title,
		s.Payload.Body,
		s.Enabled,
		s.NextFireAt,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return apperr.Storage("schedule.create", err)
}

// Update writes the mutable fields of s, leaving enabled as stored.
func (r *PostgresRepository) Update(ctx context.Context, s *Schedule, reschedule bool) error {
	query := `
		UPDATE schedules SET
			device_key = $2,
			cron_expression = $3,
			category = $4,
			title = $5,
			body = $6,
			updated_at = $7
		WHERE id = $1
	`
	args := []interface{}{
		s.ID,
		s.DeviceKey,
		s.CronExpression,
		s.Payload.Category,
		s.Payload.Title,
		s.Payload.Body,
		s.UpdatedAt,
	}
	if reschedule {
		query = `
			UPDATE schedules SET
				device_key = $2,
				cron_expression = $3,
				category = $4,
				title = $5,
				body = $6,
				updated_at = $7,
				next_fire_at = CASE WHEN enabled THEN $8 ELSE next_fire_at END
			WHERE id = $1
		`
		args = append(args, s.NextFireAt)
	}

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return apperr.Storage("schedule.update", err)
	}
	if result.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// SetEnabled writes the enabled flag and fire state of s.
func (r *PostgresRepository) SetEnabled(ctx context.Context, s *Schedule) error {
	query := `
		UPDATE schedules SET
			enabled = $2,
			next_fire_at = $3,
			updated_at = $4
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, s.ID, s.Enabled, s.NextFireAt, s.UpdatedAt)
	if err != nil {
		return apperr.Storage("schedule.set_enabled", err)
	}
	if result.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// Delete deletes a schedule by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return apperr.Storage("schedule.delete", err)
	}
	if result.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// ListDue returns enabled schedules with NextFireAt <= now, oldest first.
func (r *PostgresRepository) ListDue(ctx context.Context, now time.Time) ([]*Schedule, error) {
	query := `SELECT ` + pgScheduleColumns + `
		FROM schedules
		WHERE enabled AND next_fire_at IS NOT NULL AND next_fire_at <= $1
		ORDER BY next_fire_at ASC, seq ASC
	`
	return r.query(ctx, "schedule.list_due", query, now)
}

// AdvanceNextFire compares and swaps next_fire_at.
func (r *PostgresRepository) AdvanceNextFire(ctx context.Context, id string, expected, next time.Time) (bool, error) {
	query := `
		UPDATE schedules
		SET next_fire_at = $3
		WHERE id = $1 AND enabled AND next_fire_at = $2
	`

	result, err := r.pool.Exec(ctx, query, id, expected, next)
	if err != nil {
		return false, apperr.Storage("schedule.advance", err)
	}
	return result.RowsAffected() == 1, nil
}

func (r *PostgresRepository) query(ctx context.Context, op, query string, args ...interface{}) ([]*Schedule, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	defer rows.Close()

	var out []*Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
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

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	err := row.Scan(
		&s.ID,
		&s.DeviceKey,
		&s.CronExpression,
		&s.Payload.Category,
		&s.Payload.Title,
		&s.Payload.Body,
		&s.Enabled,
		&s.NextFireAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)

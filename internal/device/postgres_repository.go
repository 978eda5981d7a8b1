package device

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pushrelay/pushrelay/internal/apperr"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL device repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves a device by key.
func (r *PostgresRepository) Get(ctx context.Context, key string) (*Device, error) {
	query := `
		SELECT device_key, token, channel, registered_at
		FROM devices
		WHERE device_key = $1
	`

	var device Device
	err := r.pool.QueryRow(ctx, query, key).Scan(
		&device.Key,
		&device.Token,
		&device.Channel,
		&device.RegisteredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, apperr.Storage("device.get", err)
	}

	device.RegisteredAt = device.RegisteredAt.UTC()
	return &device, nil
}

// Insert stores the device unless the key is already taken.
// The conflict path returns the existing row so registration stays idempotent.
// The created path returns registered_at as stored, at the column's precision.
func (r *PostgresRepository) Insert(ctx context.Context, device *Device) (*Device, bool, error) {
	query := `
		INSERT INTO devices (device_key, token, channel, registered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (device_key) DO NOTHING
		RETURNING registered_at
	`

	cpy := *device
	err := r.pool.QueryRow(ctx, query,
		device.Key,
		device.Token,
		device.Channel,
		device.RegisteredAt,
	).Scan(&cpy.RegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := r.Get(ctx, device.Key)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, apperr.Storage("device.insert", err)
	}

	cpy.RegisteredAt = cpy.RegisteredAt.UTC()
	return &cpy, true, nil
}

// Delete deletes a device by key.
func (r *PostgresRepository) Delete(ctx context.Context, key string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM devices WHERE device_key = $1`, key)
	if err != nil {
		return apperr.Storage("device.delete", err)
	}

	if result.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)

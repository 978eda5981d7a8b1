package device

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pushrelay/pushrelay/internal/apperr"
)

// SQLiteRepository is a SQLite implementation of Repository.
// Timestamps are stored as unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get retrieves a device by key.
func (r *SQLiteRepository) Get(ctx context.Context, key string) (*Device, error) {
	var (
		device       Device
		registeredMS int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT device_key, token, channel, registered_at FROM devices WHERE device_key = ?`, key,
	).Scan(&device.Key, &device.Token, &device.Channel, &registeredMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, apperr.Storage("device.get", err)
	}

	device.RegisteredAt = time.UnixMilli(registeredMS).UTC()
	return &device, nil
}

// Insert stores the device unless the key is already taken.
func (r *SQLiteRepository) Insert(ctx context.Context, device *Device) (*Device, bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (device_key, token, channel, registered_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(device_key) DO NOTHING`,
		device.Key, device.Token, device.Channel, device.RegisteredAt.UnixMilli(),
	)
	if err != nil {
		return nil, false, apperr.Storage("device.insert", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, apperr.Storage("device.insert", err)
	}
	if n == 0 {
		existing, err := r.Get(ctx, device.Key)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	cpy := *device
	cpy.RegisteredAt = time.UnixMilli(device.RegisteredAt.UnixMilli()).UTC()
	return &cpy, true, nil
}

// Delete deletes a device by key.
func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE device_key = ?`, key)
	if err != nil {
		return apperr.Storage("device.delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperr.Storage("device.delete", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Ensure SQLiteRepository implements Repository interface.
var _ Repository = (*SQLiteRepository)(nil)

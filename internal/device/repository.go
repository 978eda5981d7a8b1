package device

import "context"

// Repository defines the interface for device persistence.
// Implementations return ErrDeviceNotFound for unknown keys and wrap backend
// failures in apperr.StorageError.
type Repository interface {
	// Get retrieves a device by key.
	Get(ctx context.Context, key string) (*Device, error)

	// Insert stores the device unless the key is already taken.
	// Returns the stored record and whether it was newly created.
	Insert(ctx context.Context, device *Device) (*Device, bool, error)

	// Delete deletes a device by key.
	Delete(ctx context.Context, key string) error
}

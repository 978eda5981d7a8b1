package device

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and single-process development.
type InMemoryRepository struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

// NewInMemoryRepository creates a new in-memory device repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		devices: make(map[string]*Device),
	}
}

// Get retrieves a device by key.
func (r *InMemoryRepository) Get(_ context.Context, key string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[key]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	cpy := *d
	return &cpy, nil
}

// Insert stores the device unless the key is already taken.
func (r *InMemoryRepository) Insert(_ context.Context, device *Device) (*Device, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.devices[device.Key]; ok {
		cpy := *existing
		return &cpy, false, nil
	}

	stored := *device
	r.devices[device.Key] = &stored
	cpy := stored
	return &cpy, true, nil
}

// Delete deletes a device by key.
func (r *InMemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[key]; !ok {
		return ErrDeviceNotFound
	}
	delete(r.devices, key)
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)

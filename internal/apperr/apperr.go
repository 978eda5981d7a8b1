// Package apperr defines the error kinds shared by the relay's components.
//
// Domain packages declare their own sentinels on top of these kinds, for example
// device.ErrDeviceNotFound wraps ErrNotFound, so callers can branch on either.
package apperr

import (
	"errors"
	"fmt"
)

// Kind sentinels.
var (
	// ErrNotFound is the kind for unknown devices, schedules and routes.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is the kind for failed shared-secret checks.
	ErrUnauthorized = errors.New("unauthorized")
)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidationError reports malformed input. It is never retried.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation failed: %s %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return "validation failed"
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// StorageError reports an unavailable or timed-out storage backend.
// It is transient: callers may retry on their own schedule.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError unless it is nil or already one.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// DeliveryError reports a downstream channel rejection or timeout.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorage reports whether err is a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsDelivery reports whether err is a DeliveryError.
func IsDelivery(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

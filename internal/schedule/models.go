// Package schedule stores recurring pushes and computes their fire times.
package schedule

import (
	"fmt"
	"time"

	"github.com/pushrelay/pushrelay/internal/apperr"
)

// Repository errors.
var (
	ErrScheduleNotFound = fmt.Errorf("schedule %w", apperr.ErrNotFound)
)

// Payload is the notification a schedule sends on every fire.
type Payload struct {
	Category string
	Title    string
	Body     string
}

// Schedule is a recurring push to one device.
type Schedule struct {
	ID             string
	DeviceKey      string
	CronExpression string
	Payload        Payload
	Enabled        bool
	// NextFireAt is nil while the schedule is disabled.
	NextFireAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsDue reports whether the schedule should fire at now.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Enabled && s.NextFireAt != nil && !s.NextFireAt.After(now)
}

// clone returns a deep copy so callers never share the NextFireAt pointer.
func (s *Schedule) clone() *Schedule {
	cpy := *s
	if s.NextFireAt != nil {
		t := *s.NextFireAt
		cpy.NextFireAt = &t
	}
	return &cpy
}

// CreateInput carries the fields for a new schedule.
type CreateInput struct {
	DeviceKey      string
	CronExpression string
	Payload        Payload
}

// UpdateInput carries a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	DeviceKey      *string
	CronExpression *string
	Category       *string
	Title          *string
	Body           *string
}

package schedule

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/apperr"
)

// Validation constants.
const (
	MaxBodyLength  = 4096
	MaxTitleLength = 256
)

// DeviceChecker reports whether a device key is registered.
type DeviceChecker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// ServiceConfig holds configuration for the schedule service.
type ServiceConfig struct {
	Repo    Repository
	Devices DeviceChecker
	Logger  zerolog.Logger
	// Now overrides the clock. Nil uses time.Now.
	Now func() time.Time
}

// Service owns schedule records. It is the only writer of schedule state.
type Service struct {
	repo    Repository
	devices DeviceChecker
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService creates a new schedule service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:    cfg.Repo,
		devices: cfg.Devices,
		logger:  cfg.Logger.With().Str("component", "schedule").Logger(),
		now:     now,
	}
}

// Create creates an enabled schedule whose first fire is the next cron
// occurrence after now.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Schedule, error) {
	input.DeviceKey = strings.TrimSpace(input.DeviceKey)
	input.CronExpression = strings.TrimSpace(input.CronExpression)

	fieldErrors := validatePayload(input.Payload)
	if input.DeviceKey == "" {
		fieldErrors = append(fieldErrors, apperr.FieldError{Field: "device_key", Message: "is required"})
	}

	now := s.now().UTC()
	var next time.Time
	if input.CronExpression == "" {
		fieldErrors = append(fieldErrors, apperr.FieldError{Field: "cron_expression", Message: "is required"})
	} else {
		var err error
		if next, err = NextFire(input.CronExpression, now); err != nil {
			fieldErrors = append(fieldErrors, apperr.FieldError{Field: "cron_expression", Message: err.Error(), Code: "invalid_cron"})
		}
	}

	if len(fieldErrors) > 0 {
		return nil, &apperr.ValidationError{Errors: fieldErrors}
	}

	if err := s.checkDevice(ctx, input.DeviceKey); err != nil {
		return nil, err
	}

	sched := &Schedule{
		ID:             "sch_" + uuid.New().String()[:22],
		DeviceKey:      input.DeviceKey,
		CronExpression: input.CronExpression,
		Payload:        input.Payload,
		Enabled:        true,
		NextFireAt:     &next,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, sched); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("schedule_id", sched.ID).
		Str("device_key", sched.DeviceKey).
		Str("cron", sched.CronExpression).
		Time("next_fire_at", next).
		Msg("schedule created")

	return sched, nil
}

// Get retrieves a schedule by ID.
func (s *Service) Get(ctx context.Context, id string) (*Schedule, error) {
	return s.repo.Get(ctx, id)
}

// List returns all schedules in creation order.
func (s *Service) List(ctx context.Context) ([]*Schedule, error) {
	return s.repo.List(ctx)
}

// Update applies a partial update. Changing the cron expression or the
// payload of an enabled schedule recomputes NextFireAt from now. Update never
// changes Enabled; a schedule disabled after it was read stays disabled.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*Schedule, error) {
	sched, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var fieldErrors []apperr.FieldError
	recompute := false

	if input.DeviceKey != nil {
		key := strings.TrimSpace(*input.DeviceKey)
		if key == "" {
			fieldErrors = append(fieldErrors, apperr.FieldError{Field: "device_key", Message: "must not be empty"})
		} else if key != sched.DeviceKey {
			if err := s.checkDevice(ctx, key); err != nil {
				return nil, err
			}
			sched.DeviceKey = key
		}
	}

	now := s.now().UTC()
	if input.CronExpression != nil {
		expr := strings.TrimSpace(*input.CronExpression)
		if _, err := ParseCron(expr); err != nil || expr == "" {
			msg := "is required"
			if err != nil && expr != "" {
				msg = err.Error()
			}
			fieldErrors = append(fieldErrors, apperr.FieldError{Field: "cron_expression", Message: msg, Code: "invalid_cron"})
		} else if expr != sched.CronExpression {
			sched.CronExpression = expr
			recompute = true
		}
	}

	payload := sched.Payload
	if input.Category != nil {
		payload.Category = *input.Category
	}
	if input.Title != nil {
		payload.Title = *input.Title
	}
	if input.Body != nil {
		payload.Body = *input.Body
	}
	fieldErrors = append(fieldErrors, validatePayload(payload)...)
	if payload != sched.Payload {
		sched.Payload = payload
		recompute = true
	}

	if len(fieldErrors) > 0 {
		return nil, &apperr.ValidationError{Errors: fieldErrors}
	}

	// The stored enabled flag decides whether the new fire time applies,
	// so it is computed even if the copy read above is disabled.
	if recompute {
		next, err := NextFire(sched.CronExpression, now)
		if err != nil {
			return nil, apperr.Invalid("cron_expression", err.Error())
		}
		sched.NextFireAt = &next
	}
	sched.UpdatedAt = now

	if err := s.repo.Update(ctx, sched, recompute); err != nil {
		return nil, err
	}

	// Re-read so fire state reflects concurrent toggles and advances.
	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if recompute && updated.NextFireAt != nil {
		s.logger.Info().
			Str("schedule_id", updated.ID).
			Time("next_fire_at", *updated.NextFireAt).
			Msg("schedule rescheduled")
	}
	return updated, nil
}

// Delete deletes a schedule. Deleting an unknown id is ErrScheduleNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("schedule_id", id).Msg("schedule deleted")
	return nil
}

// SetEnabled toggles a schedule. Enabling recomputes NextFireAt from now;
// disabling clears it.
func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) (*Schedule, error) {
	sched, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sched.Enabled = enabled
	sched.NextFireAt = nil
	if enabled {
		next, err := NextFire(sched.CronExpression, now)
		if err != nil {
			return nil, apperr.Invalid("cron_expression", err.Error())
		}
		sched.NextFireAt = &next
	}
	sched.UpdatedAt = now

	if err := s.repo.SetEnabled(ctx, sched); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("schedule_id", id).
		Bool("enabled", enabled).
		Msg("schedule toggled")

	return sched, nil
}

// ListDue returns the enabled schedules due at now, oldest first.
func (s *Service) ListDue(ctx context.Context, now time.Time) ([]*Schedule, error) {
	return s.repo.ListDue(ctx, now)
}

// AdvanceNextFire moves NextFireAt from expected to next. It returns false
// without error when the schedule was disabled, deleted or already advanced.
func (s *Service) AdvanceNextFire(ctx context.Context, id string, expected, next time.Time) (bool, error) {
	if !next.After(expected) {
		return false, apperr.Invalid("next_fire_at", "must be after the current fire time")
	}
	return s.repo.AdvanceNextFire(ctx, id, expected, next)
}

func (s *Service) checkDevice(ctx context.Context, key string) error {
	if s.devices == nil {
		return nil
	}
	ok, err := s.devices.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return &apperr.ValidationError{Errors: []apperr.FieldError{
			{Field: "device_key", Message: "is not registered", Code: "unknown_device"},
		}}
	}
	return nil
}

func validatePayload(p Payload) []apperr.FieldError {
	var errs []apperr.FieldError
	if strings.TrimSpace(p.Body) == "" {
		errs = append(errs, apperr.FieldError{Field: "body", Message: "is required"})
	} else if len(p.Body) > MaxBodyLength {
		errs = append(errs, apperr.FieldError{Field: "body", Message: "must be at most 4096 characters"})
	}
	if len(p.Title) > MaxTitleLength {
		errs = append(errs, apperr.FieldError{Field: "title", Message: "must be at most 256 characters"})
	}
	if len(p.Category) > MaxTitleLength {
		errs = append(errs, apperr.FieldError{Field: "category", Message: "must be at most 256 characters"})
	}
	return errs
}

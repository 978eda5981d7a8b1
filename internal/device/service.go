package device

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	// Key is the requested device key. Empty generates a fresh one.
	Key     string
	Token   string
	Channel string
}

// ServiceConfig holds configuration for the device service.
type ServiceConfig struct {
	Repo   Repository
	Logger zerolog.Logger
	// Now overrides the clock. Nil uses time.Now.
	Now func() time.Time
}

// Service provides device registry operations.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new device service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:   cfg.Repo,
		logger: cfg.Logger,
		now:    now,
	}
}

// Exists reports whether a device with the key is registered.
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Get retrieves a device by key.
func (s *Service) Get(ctx context.Context, key string) (*Device, error) {
	return s.repo.Get(ctx, key)
}

// Register registers a device. Registering a known key returns the
// existing record unchanged with created=false. RegisteredAt has millisecond
// precision, the coarsest any backend stores.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Device, bool, error) {
	key := strings.TrimSpace(input.Key)
	if key == "" {
		key = NewKey()
	}

	d, created, err := s.repo.Insert(ctx, &Device{
		Key:          key,
		Token:        strings.TrimSpace(input.Token),
		Channel:      strings.ToLower(strings.TrimSpace(input.Channel)),
		RegisteredAt: s.now().UTC().Truncate(time.Millisecond),
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.Info().
			Str("device_key", d.Key).
			Str("channel", d.Channel).
			Str("token_last4", d.TokenLast4()).
			Msg("device registered")
	}
	return d, created, nil
}

// Unregister removes a device registration.
func (s *Service) Unregister(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}
	s.logger.Info().Str("device_key", key).Msg("device unregistered")
	return nil
}

// NewKey generates an opaque device key.
func NewKey() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:22]
}

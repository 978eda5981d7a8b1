// Package dispatch delivers resolved pushes to a device's downstream channel.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pushrelay/pushrelay/internal/apperr"
	"github.com/pushrelay/pushrelay/internal/device"
	"github.com/pushrelay/pushrelay/internal/provider/resilience"
	"github.com/pushrelay/pushrelay/internal/push"
)

// DeviceLookup resolves device keys.
type DeviceLookup interface {
	Get(ctx context.Context, key string) (*device.Device, error)
}

// Config holds the dispatcher's collaborators.
type Config struct {
	Devices  DeviceLookup
	Channels []Channel
	// DefaultChannel is used for devices registered without a channel.
	DefaultChannel string
	// Registry records per-channel outcomes. Optional.
	Registry *resilience.Registry
	// Metrics records delivery counters. Optional.
	Metrics *Metrics
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Result describes a successful delivery.
type Result struct {
	DeviceKey   string
	Channel     string
	DeliveredAt time.Time
	Duration    time.Duration
}

// Dispatcher delivers push requests. It never mutates device or schedule state.
type Dispatcher struct {
	devices        DeviceLookup
	channels       map[string]Channel
	defaultChannel string
	registry       *resilience.Registry
	metrics        *Metrics
	logger         zerolog.Logger
	now            func() time.Time
}

// New creates a Dispatcher. The default channel must be among Channels.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Devices == nil {
		return nil, fmt.Errorf("dispatch: device lookup is required")
	}

	channels := make(map[string]Channel, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		channels[ch.Name()] = ch
		if cfg.Registry != nil {
			cfg.Registry.Track(ch.Name())
		}
	}
	if _, ok := channels[cfg.DefaultChannel]; !ok {
		return nil, fmt.Errorf("dispatch: default channel %q is not configured", cfg.DefaultChannel)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Dispatcher{
		devices:        cfg.Devices,
		channels:       channels,
		defaultChannel: cfg.DefaultChannel,
		registry:       cfg.Registry,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger.With().Str("component", "dispatcher").Logger(),
		now:            now,
	}, nil
}

// Channels returns the configured channel names, sorted.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Deliver sends req to its device's channel with a single attempt.
//
// Errors: device.ErrDeviceNotFound for unknown keys, apperr.StorageError when
// the registry backend fails, and *apperr.DeliveryError when the channel does.
func (d *Dispatcher) Deliver(ctx context.Context, req push.Request) (*Result, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "dispatch.Deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("push.device_key", req.DeviceKey),
		attribute.String("push.source", string(req.Source)),
	)

	dev, err := d.devices.Get(ctx, req.DeviceKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "device lookup failed")
		return nil, err
	}

	name := dev.Channel
	if name == "" {
		name = d.defaultChannel
	}
	span.SetAttributes(attribute.String("push.channel", name))

	ch, ok := d.channels[name]
	if !ok {
		err := &apperr.DeliveryError{Channel: name, Err: ErrUnknownChannel}
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown channel")
		return nil, err
	}

	start := d.now()
	sendErr := ch.Send(ctx, dev, Notification{
		Category: req.Category,
		Title:    req.Title,
		Body:     req.Body,
	})
	elapsed := d.now().Sub(start)

	d.metrics.RecordDelivery(name, string(req.Source), elapsed, sendErr)

	if sendErr != nil {
		if d.registry != nil {
			d.registry.RecordFailure(name, sendErr)
		}
		d.logger.Warn().
			Err(sendErr).
			Str("device_key", dev.Key).
			Str("channel", name).
			Str("source", string(req.Source)).
			Dur("duration", elapsed).
			Msg("delivery failed")

		span.RecordError(sendErr)
		span.SetStatus(codes.Error, "delivery failed")
		return nil, &apperr.DeliveryError{Channel: name, Err: sendErr}
	}

	if d.registry != nil {
		d.registry.RecordSuccess(name)
	}
	d.logger.Info().
		Str("device_key", dev.Key).
		Str("channel", name).
		Str("source", string(req.Source)).
		Dur("duration", elapsed).
		Msg("delivered")

	return &Result{
		DeviceKey:   dev.Key,
		Channel:     name,
		DeliveredAt: start,
		Duration:    elapsed,
	}, nil
}

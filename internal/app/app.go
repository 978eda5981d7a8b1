// Package app assembles the relay's components from configuration.
// Both binaries build their components through it.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/config"
	"github.com/pushrelay/pushrelay/internal/database"
	"github.com/pushrelay/pushrelay/internal/device"
	"github.com/pushrelay/pushrelay/internal/dispatch"
	"github.com/pushrelay/pushrelay/internal/provider/resilience"
	"github.com/pushrelay/pushrelay/internal/schedule"
	"github.com/pushrelay/pushrelay/internal/worker"
)

// Components holds the wired services.
type Components struct {
	Devices    *device.Service
	Schedules  *schedule.Service
	Registry   *resilience.Registry
	Dispatcher *dispatch.Dispatcher
	Trigger    *worker.Trigger

	closers []func()
}

// Close releases storage handles in reverse order of acquisition.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build opens storage and wires the registry, schedule store, dispatcher and trigger.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Components, error) {
	c := &Components{Registry: resilience.NewRegistry()}

	deviceRepo, scheduleRepo, err := c.openRepositories(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	c.Devices = device.NewService(device.ServiceConfig{
		Repo:   deviceRepo,
		Logger: log,
	})
	c.Schedules = schedule.NewService(schedule.ServiceConfig{
		Repo:    scheduleRepo,
		Devices: c.Devices,
		Logger:  log,
	})

	channels, err := buildChannels(cfg.Push, c.Registry, log)
	if err != nil {
		c.Close()
		return nil, err
	}

	metrics, err := dispatch.NewMetrics()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create delivery metrics: %w", err)
	}

	c.Dispatcher, err = dispatch.New(dispatch.Config{
		Devices:        c.Devices,
		Channels:       channels,
		DefaultChannel: cfg.Push.DefaultChannel,
		Registry:       c.Registry,
		Metrics:        metrics,
		Logger:         log,
	})
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Trigger = worker.NewTrigger(worker.TriggerOptions{
		Config: worker.TriggerConfig{
			Concurrency: cfg.Trigger.Concurrency,
			FireTimeout: cfg.Trigger.FireTimeout,
			TickTimeout: cfg.Trigger.TickTimeout,
			Rate:        cfg.Trigger.Rate,
		},
		Store:      c.Schedules,
		Dispatcher: c.Dispatcher,
		Logger:     log,
	})

	return c, nil
}

func (c *Components) openRepositories(ctx context.Context, cfg config.Config, log zerolog.Logger) (device.Repository, schedule.Repository, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Warn().Msg("using in-memory store; devices and schedules are lost on restart")
		return device.NewInMemoryRepository(), schedule.NewInMemoryRepository(), nil

	case config.StorePostgres:
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.closers = append(c.closers, pool.Close)
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")
		return device.NewPostgresRepository(pool), schedule.NewPostgresRepository(pool), nil

	case config.StoreSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		c.closers = append(c.closers, func() { _ = db.Close() })
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite store opened")
		return device.NewSQLiteRepository(db), schedule.NewSQLiteRepository(db), nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// buildChannels always provides the log and Expo channels; the gateway
// channel exists only when a gateway URL is configured.
func buildChannels(cfg config.PushConfig, registry *resilience.Registry, log zerolog.Logger) ([]dispatch.Channel, error) {
	channels := []dispatch.Channel{
		dispatch.NewLogChannel(log),
		dispatch.NewExpoChannel(cfg.ExpoHost, cfg.GatewayTimeout),
	}

	if cfg.GatewayURL != "" {
		gateway, err := dispatch.NewGatewayChannel(dispatch.GatewayConfig{
			URL:      cfg.GatewayURL,
			Timeout:  cfg.GatewayTimeout,
			Registry: registry,
		})
		if err != nil {
			return nil, fmt.Errorf("create gateway channel: %w", err)
		}
		channels = append(channels, gateway)
	} else if cfg.DefaultChannel == config.ChannelGateway {
		return nil, fmt.Errorf("%s is the default channel but GATEWAY_URL is not set", config.ChannelGateway)
	}

	return channels, nil
}

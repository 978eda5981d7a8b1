// Package main provides the entrypoint for the pushrelay API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/api"
	"github.com/pushrelay/pushrelay/internal/api/handler"
	"github.com/pushrelay/pushrelay/internal/api/middleware"
	"github.com/pushrelay/pushrelay/internal/app"
	"github.com/pushrelay/pushrelay/internal/config"
	"github.com/pushrelay/pushrelay/internal/telemetry"
	"github.com/pushrelay/pushrelay/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "pushrelay-api"

	bootLog := zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
	if err := config.LoadDotEnv(); err != nil {
		bootLog.Warn().Err(err).Msg("failed to load .env")
	}
	cfg := config.FromEnv()

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		Level(cfg.LogLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Str("store", cfg.StoreDriver).
		Str("default_channel", cfg.Push.DefaultChannel).
		Msg("starting pushrelay API")

	if cfg.APIKey == "" {
		log.Warn().Msg("API_KEY is not set; the schedule API will reject every request")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	tp, err := telemetry.Init(ctx, telemetry.ConfigFrom(cfg, serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.OTel.Enabled {
		log.Info().Str("otlp_endpoint", cfg.OTel.Endpoint).Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build components")
	}
	defer components.Close()

	// The trigger optionally runs inside the API process (single-binary deployments).
	var triggerStats handler.TriggerStats
	runnerDone := make(chan struct{})
	if cfg.Trigger.InProcess {
		triggerStats = components.Trigger
		runner := worker.NewRunner(worker.RunnerConfig{
			Trigger:  components.Trigger,
			Interval: cfg.Trigger.Interval,
			Logger:   log,
		})
		go func() {
			defer close(runnerDone)
			_ = runner.Run(ctx)
		}()
	} else {
		close(runnerDone)
	}

	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		APIKey:         cfg.APIKey,
		RequireTLS:     cfg.RequireTLS,
		DefaultChannel: cfg.Push.DefaultChannel,
		Devices:        components.Devices,
		Dispatcher:     components.Dispatcher,
		Schedules:      components.Schedules,
		Channels:       components.Registry,
		Trigger:        triggerStats,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	<-runnerDone

	log.Info().Msg("server stopped")
}

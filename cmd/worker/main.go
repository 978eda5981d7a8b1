// Package main provides the entrypoint for the pushrelay schedule worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/app"
	"github.com/pushrelay/pushrelay/internal/config"
	"github.com/pushrelay/pushrelay/internal/telemetry"
	"github.com/pushrelay/pushrelay/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "pushrelay-worker"

	bootLog := zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
	if err := config.LoadDotEnv(); err != nil {
		bootLog.Warn().Err(err).Msg("failed to load .env")
	}
	cfg := config.FromEnv()

	log := zerolog.New(os.Stdout).
		Level(cfg.LogLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("store", cfg.StoreDriver).
		Bool("pubsub", cfg.PubSub.Enabled()).
		Msg("starting pushrelay worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build components")
	}
	defer components.Close()

	// Worker also exposes a health endpoint for Cloud Run
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := components.Trigger.CheckStore(checkCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprint(w, "store unavailable")
			return
		}
		_, _ = fmt.Fprint(w, "ok")
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if err := run(ctx, cfg, components.Trigger, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker stopped with error")
	}

	log.Info().Msg("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// run drives the trigger from Pub/Sub when configured, otherwise from a local ticker.
func run(ctx context.Context, cfg config.Config, trigger *worker.Trigger, log zerolog.Logger) error {
	if !cfg.PubSub.Enabled() {
		return worker.NewRunner(worker.RunnerConfig{
			Trigger:  trigger,
			Interval: cfg.Trigger.Interval,
			Logger:   log,
		}).Run(ctx)
	}

	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.PubSub.ProjectID,
		SubscriptionName: cfg.PubSub.Subscription,
		Trigger:          trigger,
		Logger:           log,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := handler.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}()

	return handler.Start(ctx)
}

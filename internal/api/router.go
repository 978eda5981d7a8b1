// Package api provides the HTTP API for pushrelay.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/api/handler"
	"github.com/pushrelay/pushrelay/internal/api/middleware"
	"github.com/pushrelay/pushrelay/internal/api/models"
)

// pushRoutes are registered from the most specific to the least specific.
// A path with more segments than the first entry matches nothing and is a 404.
var pushRoutes = []string{
	"/{category}/{title}/{body}",
	"/{title}/{body}",
	"/{body}",
	"/",
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// APIKey guards the schedule API. Empty rejects every schedule call.
	APIKey     string
	RequireTLS bool

	DefaultChannel string
	Devices        handler.DeviceRegistry
	Dispatcher     handler.Deliverer
	Schedules      handler.ScheduleService
	Channels       handler.ChannelHealthSource
	// Trigger is set when the trigger runs in this process.
	Trigger handler.TriggerStats
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "pushrelay-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(chimiddleware.RealIP)            // Real IP extraction for logs and rate limits
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(middleware.SecurityHeaders)            // Security headers
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement behind a load balancer
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	notFound := func(w http.ResponseWriter, r *http.Request) {
		models.NewNotFound(middleware.GetRequestID(r.Context()), "no route matches this path").Write(w)
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		models.NewProblem(
			"https://pushrelay.dev/problems/method-not-allowed",
			"Method not allowed",
			http.StatusMethodNotAllowed,
			middleware.GetRequestID(r.Context()),
		).Write(w)
	})

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:        cfg.Version,
		BuildTime:      cfg.BuildTime,
		DefaultChannel: cfg.DefaultChannel,
		Channels:       cfg.Channels,
		Trigger:        cfg.Trigger,
	})
	registerHandler := handler.NewRegisterHandler(cfg.Devices, cfg.Logger)
	pushHandler := handler.NewPushHandler(cfg.Dispatcher, cfg.Logger)
	scheduleHandler := handler.NewScheduleHandler(cfg.Schedules, cfg.Logger)

	pushRateLimit := middleware.RateLimitByIP(middleware.PushRateLimit)                 // 120 req/min per IP
	devicePushRateLimit := middleware.RateLimitByDevice(middleware.DevicePushRateLimit) // 60 req/min per device

	// Ops endpoints (public)
	r.Get("/ping", opsHandler.Ping)
	r.Get("/healthz", opsHandler.Healthz)
	r.Get("/info", opsHandler.Info)

	apiKey := middleware.APIKey(cfg.APIKey, cfg.Logger)

	// Device registration - strict rate limiting
	r.Route("/register", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(middleware.RegisterRateLimit)) // 30 req/min per IP
		r.Get("/{key}", registerHandler.Check)
		r.With(apiKey).Delete("/{key}", registerHandler.Unregister)
		r.Get("/", registerHandler.Register)
		r.Post("/", registerHandler.Register)
	})

	r.With(pushRateLimit).Post("/push", pushHandler.PushBody)

	// Schedule API (shared-secret key)
	r.Route("/api/schedules", func(r chi.Router) {
		r.Use(apiKey)
		r.Use(middleware.RateLimitByIP(middleware.StandardRateLimit)) // 100 req/min per IP
		r.Use(middleware.RequireJSON)
		r.Post("/", scheduleHandler.CreateSchedule)
		r.Get("/", scheduleHandler.ListSchedules)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", scheduleHandler.GetSchedule)
			r.Put("/", scheduleHandler.UpdateSchedule)
			r.Delete("/", scheduleHandler.DeleteSchedule)
			r.Put("/enable", scheduleHandler.EnableSchedule)
			r.Put("/disable", scheduleHandler.DisableSchedule)
		})
	})

	// The /api namespace is reserved; unknown paths under it are not device keys.
	r.HandleFunc("/api", notFound)
	r.HandleFunc("/api/*", notFound)

	// On-demand pushes: /{key} followed by 0..3 segments
	r.Route("/{key}", func(r chi.Router) {
		r.Use(pushRateLimit)
		r.Use(devicePushRateLimit)
		for _, pattern := range pushRoutes {
			r.Get(pattern, pushHandler.Push)
			r.Post(pattern, pushHandler.Push)
		}
	})

	return r
}

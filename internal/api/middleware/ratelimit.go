package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/pushrelay/pushrelay/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// Requests per window
	RequestLimit int
	// Window duration
	WindowLength time.Duration
}

// Default rate limit configurations.
var (
	// RegisterRateLimit applies to device registration (30 req/min per IP).
	RegisterRateLimit = RateLimitConfig{
		RequestLimit: 30,
		WindowLength: time.Minute,
	}

	// PushRateLimit applies to on-demand pushes (120 req/min per IP).
	PushRateLimit = RateLimitConfig{
		RequestLimit: 120,
		WindowLength: time.Minute,
	}

	// DevicePushRateLimit caps pushes to a single device (60 req/min).
	DevicePushRateLimit = RateLimitConfig{
		RequestLimit: 60,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to the schedule API (100 req/min per IP).
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 100,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP creates a rate limiter middleware using client IP address.
// Uses X-Forwarded-For header if present (extracted by chi's RealIP middleware).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitHandler(cfg)),
	)
}

// RateLimitByDevice limits pushes per target device key.
// It must run after routing has captured the {key} URL parameter.
func RateLimitByDevice(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyByDeviceOrIP),
		httprate.WithLimitHandler(limitHandler(cfg)),
	)
}

// keyByDeviceOrIP returns the device key when routed, otherwise the client IP.
func keyByDeviceOrIP(r *http.Request) (string, error) {
	if key := chi.URLParam(r, "key"); key != "" {
		return "device:" + key, nil
	}
	return httprate.KeyByRealIP(r)
}

// limitHandler writes an RFC 7807 problem when the rate limit is exceeded.
func limitHandler(cfg RateLimitConfig) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Seconds()))
	return func(w http.ResponseWriter, r *http.Request) {
		traceID := GetRequestID(r.Context())
		problem := models.NewTooManyRequests(traceID, "Rate limit exceeded. Please try again later.")

		// httprate doesn't expose the exact reset time, so the window length is used.
		w.Header().Set("Retry-After", retryAfter)
		problem.Write(w)
	}
}

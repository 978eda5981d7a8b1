package middleware

import (
	"net/http"

	"github.com/pushrelay/pushrelay/internal/api/models"
)

// SecurityHeaders adds standard security headers to all HTTP responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects plain-HTTP requests forwarded by a load balancer.
// It checks X-Forwarded-Proto; requests without the header pass through.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			proto := r.Header.Get("X-Forwarded-Proto")
			if proto != "" && proto != "https" {
				problem := models.NewProblem(
					"https://pushrelay.dev/problems/tls-required",
					"TLS required",
					http.StatusForbidden,
					GetRequestID(r.Context()),
				).WithDetail("This endpoint requires HTTPS")
				problem.Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

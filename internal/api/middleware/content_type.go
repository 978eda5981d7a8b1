package middleware

import (
	"mime"
	"net/http"

	"github.com/pushrelay/pushrelay/internal/api/models"
)

// ContentTypeJSON sets the Content-Type header to application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only set if not already set (allows handlers to override)
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON checks that the request Content-Type is application/json for
// POST, PUT, and PATCH requests. A missing Content-Type is accepted.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if ct := r.Header.Get("Content-Type"); ct != "" {
				mediaType, _, err := mime.ParseMediaType(ct)
				if err != nil || mediaType != "application/json" {
					models.NewProblem(
						"https://pushrelay.dev/problems/unsupported-media-type",
						"Unsupported media type",
						http.StatusUnsupportedMediaType,
						GetRequestID(r.Context()),
					).WithDetail("Content-Type must be application/json").Write(w)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/api/models"
)

// APIKey guards routes with a shared secret passed as "Authorization: Bearer <key>"
// or "X-API-Key: <key>". An empty secret rejects every request.
func APIKey(secret string, log zerolog.Logger) func(http.Handler) http.Handler {
	expected := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				writeUnauthorized(w, r, "API key authentication is not configured")
				return
			}

			presented, ok := presentedKey(r)
			if !ok {
				writeUnauthorized(w, r, "missing API key")
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
				log.Warn().
					Str("request_id", GetRequestID(r.Context())).
					Str("remote_addr", r.RemoteAddr).
					Msg("rejected invalid API key")
				writeUnauthorized(w, r, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// presentedKey extracts the key from the Authorization or X-API-Key header.
func presentedKey(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		const bearerPrefix = "Bearer "
		if len(authHeader) < len(bearerPrefix) ||
			!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			return "", false
		}
		token := strings.TrimSpace(authHeader[len(bearerPrefix):])
		return token, token != ""
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key, true
	}
	return "", false
}

// writeUnauthorized writes a 401 problem. Implemented here to avoid an import cycle with response.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="pushrelay"`)
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

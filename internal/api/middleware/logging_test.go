package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/pushrelay/internal/api/middleware"
)

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_LogsRoutePatternNotMessage(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(middleware.Logger(zerolog.New(&buf)))
	r.Get("/{key}/{title}/{body}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("sent"))
	})

	req := httptest.NewRequest(http.MethodGet, "/d1/alert/secret-message", http.NoBody)
	req.Header.Set("User-Agent", "test-agent")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "request completed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/{key}/{title}/{body}", entry["route"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(4), entry["bytes"])
	assert.Equal(t, "test-agent", entry["user_agent"])
	assert.NotContains(t, buf.String(), "secret-message")
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusBadGateway, "error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/push", http.NoBody))

			entry := decodeLogLine(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, float64(tt.status), entry["status"])
			assert.Equal(t, "unmatched", entry["route"])
		})
	}
}

func TestLogger_IncludesRequestID(t *testing.T) {
	var buf bytes.Buffer
	handler := middleware.RequestID(
		middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))

	entry := decodeLogLine(t, &buf)
	requestID, ok := entry["request_id"].(string)
	require.True(t, ok)
	assert.Contains(t, requestID, "req_")
}

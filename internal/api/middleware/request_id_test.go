package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pushrelay/pushrelay/internal/api/middleware"
)

func TestRequestID_GeneratesNewID(t *testing.T) {
	var seen string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))

	assert.True(t, strings.HasPrefix(seen, "req_"))
	assert.Equal(t, seen, w.Header().Get("X-Request-Id"))
}

func TestRequestID_PreservesExistingID(t *testing.T) {
	var seen string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
	req.Header.Set("X-Request-Id", "upstream-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "upstream-123", seen)
	assert.Equal(t, "upstream-123", w.Header().Get("X-Request-Id"))
}

func TestRequestID_ReplacesOversizedID(t *testing.T) {
	var seen string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
	req.Header.Set("X-Request-Id", strings.Repeat("x", 500))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, strings.HasPrefix(seen, "req_"))
}

func TestGetRequestID_EmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}

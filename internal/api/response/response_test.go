package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pushrelay/pushrelay/internal/api/middleware"
	"github.com/pushrelay/pushrelay/internal/api/models"
	"github.com/pushrelay/pushrelay/internal/api/response"
	"github.com/pushrelay/pushrelay/internal/apperr"
)

// requestWithContext creates an HTTP request that has been processed by the RequestID middleware
// to populate the context with a request ID.
func requestWithContext(t *testing.T, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)

	var processedReq *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		processedReq = r
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	return processedReq, httptest.NewRecorder()
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/info")

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hello"})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
}

func TestJSON_NilData(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/info")

	response.JSON(rec, req, http.StatusOK, nil)

	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}
}

func TestCreated_SetsLocation(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/api/schedules")

	response.Created(rec, req, "/api/schedules/sch_1", map[string]string{"id": "sch_1"})

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/api/schedules/sch_1" {
		t.Errorf("unexpected Location %q", loc)
	}
}

func TestNoContent_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodDelete, "/api/schedules/sch_1")

	response.NoContent(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header")
	}
}

func TestError_MapsKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"validation", apperr.Invalid("body", "is required"), http.StatusBadRequest, models.ProblemTypeValidation},
		{"not found", fmt.Errorf("schedule %w", apperr.ErrNotFound), http.StatusNotFound, models.ProblemTypeNotFound},
		{"unauthorized", apperr.ErrUnauthorized, http.StatusUnauthorized, models.ProblemTypeUnauthorized},
		{"delivery", &apperr.DeliveryError{Channel: "gateway", Err: errors.New("503")}, http.StatusBadGateway, models.ProblemTypeDelivery},
		{"storage", apperr.Storage("device.get", errors.New("conn refused")), http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, models.ProblemTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := requestWithContext(t, http.MethodGet, "/api/schedules")

			response.Error(rec, req, tt.err)

			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			var p models.Problem
			if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
				t.Fatalf("decode problem: %v", err)
			}
			if p.Type != tt.typ {
				t.Errorf("expected type %q, got %q", tt.typ, p.Type)
			}
			if p.TraceID == "" {
				t.Error("expected traceId")
			}
		})
	}
}

func TestError_ValidationCarriesFields(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/api/schedules")

	response.Error(rec, req, &apperr.ValidationError{Errors: []apperr.FieldError{
		{Field: "device_key", Message: "is not registered", Code: "unknown_device"},
		{Field: "cron_expression", Message: "is required"},
	}})

	var p models.Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if len(p.Errors) != 2 {
		t.Fatalf("expected 2 field errors, got %d", len(p.Errors))
	}
	if p.Errors[0].Code != "unknown_device" {
		t.Errorf("unexpected code %q", p.Errors[0].Code)
	}
}

func TestError_StorageDetailNotLeaked(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/api/schedules")

	response.Error(rec, req, apperr.Storage("schedule.list", errors.New("password authentication failed")))

	var p models.Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if p.Detail != "storage temporarily unavailable" {
		t.Errorf("unexpected detail %q", p.Detail)
	}
}

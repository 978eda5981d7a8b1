// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pushrelay/pushrelay/internal/api/middleware"
	"github.com/pushrelay/pushrelay/internal/api/models"
	"github.com/pushrelay/pushrelay/internal/apperr"
)

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Created writes a 201 Created response with Location header.
func Created(w http.ResponseWriter, r *http.Request, location string, data interface{}) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	JSON(w, r, http.StatusCreated, data)
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Problem writes a Problem+JSON error response.
func Problem(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	if problem.Instance == "" {
		problem.Instance = r.URL.Path
	}
	problem.Write(w)
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Problem(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), detail))
}

// Error maps a domain error onto its Problem response:
// validation 400, unauthorized 401, not found 404, delivery 502, storage 503, anything else 500.
// Storage and unexpected errors are not echoed to the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	traceID := middleware.GetRequestID(r.Context())

	var (
		validation *apperr.ValidationError
		delivery   *apperr.DeliveryError
	)
	switch {
	case errors.As(err, &validation):
		Problem(w, r, models.NewBadRequest(traceID, validation.Error(), fieldErrors(validation.Errors)))
	case errors.Is(err, apperr.ErrUnauthorized):
		Problem(w, r, models.NewUnauthorized(traceID, err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		Problem(w, r, models.NewNotFound(traceID, err.Error()))
	case errors.As(err, &delivery):
		Problem(w, r, models.NewBadGateway(traceID, "delivery via "+delivery.Channel+" failed"))
	case apperr.IsStorage(err):
		Problem(w, r, models.NewServiceUnavailable(traceID, "storage temporarily unavailable"))
	default:
		Problem(w, r, models.NewInternalError(traceID, "an unexpected error occurred"))
	}
}

func fieldErrors(in []apperr.FieldError) []models.FieldError {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.FieldError, 0, len(in))
	for _, fe := range in {
		out = append(out, models.FieldError{Field: fe.Field, Message: fe.Message, Code: fe.Code})
	}
	return out
}

package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/api/models"
	"github.com/pushrelay/pushrelay/internal/api/response"
	"github.com/pushrelay/pushrelay/internal/schedule"
)

// ScheduleService is the schedule lifecycle API exposed over HTTP.
type ScheduleService interface {
	Create(ctx context.Context, input schedule.CreateInput) (*schedule.Schedule, error)
	Get(ctx context.Context, id string) (*schedule.Schedule, error)
	List(ctx context.Context) ([]*schedule.Schedule, error)
	Update(ctx context.Context, id string, input schedule.UpdateInput) (*schedule.Schedule, error)
	Delete(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) (*schedule.Schedule, error)
}

// ScheduleHandler handles the /api/schedules endpoints.
type ScheduleHandler struct {
	schedules ScheduleService
	logger    zerolog.Logger
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(schedules ScheduleService, logger zerolog.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, logger: logger}
}

// CreateSchedule handles POST /api/schedules.
func (h *ScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req models.ScheduleCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	s, err := h.schedules.Create(r.Context(), schedule.CreateInput{
		DeviceKey:      req.DeviceKey,
		CronExpression: req.CronExpression,
		Payload: schedule.Payload{
			Category: req.Payload.Category,
			Title:    req.Payload.Title,
			Body:     req.Payload.Body,
		},
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.Created(w, r, "/api/schedules/"+s.ID, models.ScheduleFromDomain(s))
}

// ListSchedules handles GET /api/schedules.
func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	items, err := h.schedules.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.SchedulesFromDomain(items))
}

// GetSchedule handles GET /api/schedules/{id}.
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	s, err := h.schedules.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.ScheduleFromDomain(s))
}

// UpdateSchedule handles PUT /api/schedules/{id}. Absent fields are left unchanged.
func (h *ScheduleHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req models.ScheduleUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	s, err := h.schedules.Update(r.Context(), chi.URLParam(r, "id"), req.ToInput())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.ScheduleFromDomain(s))
}

// DeleteSchedule handles DELETE /api/schedules/{id}.
func (h *ScheduleHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.schedules.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.NoContent(w, r)
}

// EnableSchedule handles PUT /api/schedules/{id}/enable.
func (h *ScheduleHandler) EnableSchedule(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// DisableSchedule handles PUT /api/schedules/{id}/disable.
func (h *ScheduleHandler) DisableSchedule(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *ScheduleHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	s, err := h.schedules.SetEnabled(r.Context(), chi.URLParam(r, "id"), enabled)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.ScheduleFromDomain(s))
}

package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/api/models"
	"github.com/pushrelay/pushrelay/internal/api/response"
	"github.com/pushrelay/pushrelay/internal/device"
)

// DeviceRegistry is the device operations the HTTP surface needs.
type DeviceRegistry interface {
	Exists(ctx context.Context, key string) (bool, error)
	Register(ctx context.Context, input device.RegisterInput) (*device.Device, bool, error)
	Unregister(ctx context.Context, key string) error
}

// RegisterHandler handles device registration endpoints.
type RegisterHandler struct {
	devices DeviceRegistry
	logger  zerolog.Logger
	now     func() time.Time
}

// NewRegisterHandler creates a new RegisterHandler.
func NewRegisterHandler(devices DeviceRegistry, logger zerolog.Logger) *RegisterHandler {
	return &RegisterHandler{devices: devices, logger: logger, now: time.Now}
}

// Check handles GET /register/{key} - reports whether a device is registered.
func (h *RegisterHandler) Check(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))

	ok, err := h.devices.Exists(r.Context(), key)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !ok {
		response.NotFound(w, r, "device not registered")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewEnvelope(http.StatusOK, "success", nil, h.now()))
}

// Register handles GET and POST /register. GET reads the query string;
// POST reads a JSON or form body. An empty device_key issues a new key.
func (h *RegisterHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.DeviceRegisterRequest
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req = models.DeviceRegisterRequest{
			DeviceKey:   q.Get("device_key"),
			DeviceToken: q.Get("device_token"),
			Channel:     q.Get("channel"),
		}
	} else {
		values, err := bodyValues(w, r, "device_key", "device_token", "channel")
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		req = models.DeviceRegisterRequest{
			DeviceKey:   values["device_key"],
			DeviceToken: values["device_token"],
			Channel:     values["channel"],
		}
	}

	d, created, err := h.devices.Register(r.Context(), device.RegisterInput{
		Key:     req.DeviceKey,
		Token:   req.DeviceToken,
		Channel: req.Channel,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.JSON(w, r, status, models.NewEnvelope(status, "success", models.DeviceFromDomain(d), h.now()))
}

// Unregister handles DELETE /register/{key}. Schedules that still name the
// device keep firing and fail delivery until they are removed.
func (h *RegisterHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))

	if err := h.devices.Unregister(r.Context(), key); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.NoContent(w, r)
}

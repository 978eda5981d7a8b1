package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/api/models"
	"github.com/pushrelay/pushrelay/internal/api/response"
	"github.com/pushrelay/pushrelay/internal/dispatch"
	"github.com/pushrelay/pushrelay/internal/push"
)

// Deliverer sends a resolved push.
type Deliverer interface {
	Deliver(ctx context.Context, req push.Request) (*dispatch.Result, error)
}

// PushHandler handles on-demand push endpoints.
type PushHandler struct {
	dispatcher Deliverer
	logger     zerolog.Logger
	now        func() time.Time
}

// NewPushHandler creates a new PushHandler.
func NewPushHandler(dispatcher Deliverer, logger zerolog.Logger) *PushHandler {
	return &PushHandler{dispatcher: dispatcher, logger: logger, now: time.Now}
}

// Push handles GET and POST /{key}[/{category}][/{title}][/{body}].
// The route decides how many segments there are; the resolver decides what they mean.
func (h *PushHandler) Push(w http.ResponseWriter, r *http.Request) {
	in := push.Input{
		DeviceKey: chi.URLParam(r, "key"),
		Method:    push.Method(r.Method),
		Segments:  positionalSegments(r),
		// chi matches on RawPath when the path needed escaping.
		Encoded: r.URL.RawPath != "",
	}

	if r.Method == http.MethodPost {
		values, err := bodyValues(w, r, "category", "title", "body")
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		in.Fields = push.Fields{Category: values["category"], Title: values["title"], Body: values["body"]}
	}

	h.deliver(w, r, in)
}

// PushBody handles POST /push, where the device key travels in the body.
func (h *PushHandler) PushBody(w http.ResponseWriter, r *http.Request) {
	values, err := bodyValues(w, r, "device_key", "category", "title", "body")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.deliver(w, r, push.Input{
		DeviceKey: values["device_key"],
		Method:    push.MethodPost,
		Fields:    push.Fields{Category: values["category"], Title: values["title"], Body: values["body"]},
	})
}

func (h *PushHandler) deliver(w http.ResponseWriter, r *http.Request, in push.Input) {
	req, err := push.Resolve(in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if _, err := h.dispatcher.Deliver(r.Context(), *req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewEnvelope(http.StatusOK, "success", nil, h.now()))
}

// positionalSegments returns the matched path parameters after the device key, in path order.
func positionalSegments(r *http.Request) []string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return nil
	}
	var segments []string
	for i, k := range rctx.URLParams.Keys {
		if k == "key" || k == "*" {
			continue
		}
		segments = append(segments, rctx.URLParams.Values[i])
	}
	return segments
}

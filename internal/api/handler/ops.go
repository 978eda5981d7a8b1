package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/pushrelay/pushrelay/internal/api/models"
	"github.com/pushrelay/pushrelay/internal/api/response"
	"github.com/pushrelay/pushrelay/internal/provider/resilience"
)

// ChannelHealthSource reports downstream channel health.
type ChannelHealthSource interface {
	AllHealth() []*resilience.ChannelHealth
}

// TriggerStats exposes in-process trigger counters.
type TriggerStats interface {
	MetricsSnapshot() map[string]interface{}
}

// OpsConfig configures the OpsHandler. Only Version is required.
type OpsConfig struct {
	Version        string
	BuildTime      string
	DefaultChannel string
	Channels       ChannelHealthSource
	// Trigger is nil when the trigger runs in a separate process.
	Trigger TriggerStats
	Now     func() time.Time
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &OpsHandler{cfg: cfg}
}

// Ping handles GET /ping.
func (h *OpsHandler) Ping(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.NewEnvelope(http.StatusOK, "pong", nil, h.cfg.Now()))
}

// Healthz handles GET /healthz - liveness check.
func (h *OpsHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Info handles GET /info - build details, channel health and trigger counters.
func (h *OpsHandler) Info(w http.ResponseWriter, r *http.Request) {
	info := models.Info{
		Version:        h.cfg.Version,
		BuildTime:      h.cfg.BuildTime,
		Arch:           runtime.GOOS + "/" + runtime.GOARCH,
		Status:         models.HealthStatusOK,
		Time:           models.Timestamp(h.cfg.Now()),
		DefaultChannel: h.cfg.DefaultChannel,
		Channels:       []models.ChannelStatus{},
	}

	if h.cfg.Channels != nil {
		for _, health := range h.cfg.Channels.AllHealth() {
			cs := channelStatus(health)
			info.Channels = append(info.Channels, cs)
			info.Status = worst(info.Status, cs.Status)
		}
	}
	if h.cfg.Trigger != nil {
		info.Trigger = h.cfg.Trigger.MetricsSnapshot()
	}

	response.JSON(w, r, http.StatusOK, info)
}

func channelStatus(h *resilience.ChannelHealth) models.ChannelStatus {
	cs := models.ChannelStatus{
		Channel:       h.Name,
		Status:        models.HealthStatusOK,
		CircuitState:  h.CircuitState.String(),
		LastSuccessAt: models.TimestampPtr(h.LastSuccessAt),
		LastFailureAt: models.TimestampPtr(h.LastFailureAt),
	}
	switch {
	case h.IsUnhealthy():
		cs.Status = models.HealthStatusFail
	case h.IsDegraded():
		cs.Status = models.HealthStatusDegraded
	}
	if h.LastError != "" {
		msg := h.LastError
		cs.Message = &msg
	}
	return cs
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ChannelHealth is a point-in-time view of one downstream channel.
type ChannelHealth struct {
	Name string

	// CircuitState is closed for channels without a breaker.
	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// IsDegraded returns true if the channel's breaker is half-open.
func (h *ChannelHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy returns true if the channel's breaker is open.
func (h *ChannelHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry tracks downstream channels and their delivery outcomes.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*trackedChannel
	now      func() time.Time
}

type trackedChannel struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]*trackedChannel),
		now:      time.Now,
	}
}

// Register tracks a channel backed by a resilient client.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[name] = &trackedChannel{client: client}
}

// Track tracks a channel that has no circuit breaker of its own.
// Tracking an already registered name is a no-op.
func (r *Registry) Track(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[name]; !ok {
		r.channels[name] = &trackedChannel{}
	}
}

// RecordSuccess records a successful delivery. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.channels[name]; ok {
		now := r.now()
		c.lastSuccessAt = &now
	}
}

// RecordFailure records a failed delivery. Unknown names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.channels[name]; ok {
		now := r.now()
		c.lastFailureAt = &now
		if err != nil {
			c.lastError = err.Error()
		}
	}
}

// AllHealth returns the health of every tracked channel, sorted by name.
func (r *Registry) AllHealth() []*ChannelHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*ChannelHealth, 0, len(r.channels))
	for name, c := range r.channels {
		health = append(health, c.snapshot(name))
	}
	sort.Slice(health, func(i, j int) bool { return health[i].Name < health[j].Name })
	return health
}

func (c *trackedChannel) snapshot(name string) *ChannelHealth {
	h := &ChannelHealth{
		Name:          name,
		CircuitState:  gobreaker.StateClosed,
		LastSuccessAt: c.lastSuccessAt,
		LastFailureAt: c.lastFailureAt,
		LastError:     c.lastError,
	}
	if c.client != nil {
		h.CircuitState = c.client.CircuitBreakerState()
		h.Counts = c.client.CircuitBreakerCounts()
	}
	return h
}

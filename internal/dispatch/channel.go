package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/device"
	"github.com/pushrelay/pushrelay/internal/provider/resilience"
)

// Channel errors.
var (
	ErrMissingToken   = errors.New("device has no push token")
	ErrUnknownChannel = errors.New("unknown push channel")
)

// Notification is what a channel sends to a device.
type Notification struct {
	Category string
	Title    string
	Body     string
}

// Channel is a downstream notification sink. Send makes exactly one attempt.
type Channel interface {
	Name() string
	Send(ctx context.Context, d *device.Device, n Notification) error
}

// GatewayConfig configures a GatewayChannel.
type GatewayConfig struct {
	URL     string
	Timeout time.Duration
	// Registry receives the channel's circuit breaker.
	Registry *resilience.Registry
	// Transport overrides the HTTP transport. Used in tests.
	Transport http.RoundTripper
}

// GatewayChannel POSTs notifications as JSON to an HTTP push gateway.
type GatewayChannel struct {
	url    string
	client *resilience.Client
}

type gatewayPayload struct {
	DeviceKey string `json:"device_key"`
	Token     string `json:"device_token,omitempty"`
	Category  string `json:"category,omitempty"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body"`
}

// NewGatewayChannel creates a gateway channel. Retries are disabled so each
// Send is a single attempt; the breaker still sheds load from a dead gateway.
func NewGatewayChannel(cfg GatewayConfig) (*GatewayChannel, error) {
	if cfg.URL == "" {
		return nil, errors.New("gateway url is required")
	}

	cbConfig := resilience.DefaultCircuitBreakerConfig("gateway")
	client := resilience.NewClient(resilience.ClientConfig{
		Name:           "gateway",
		Timeout:        cfg.Timeout,
		MaxRetries:     0,
		CircuitBreaker: &cbConfig,
		Registry:       cfg.Registry,
		Transport:      cfg.Transport,
	})

	return &GatewayChannel{url: cfg.URL, client: client}, nil
}

// Name implements Channel.
func (c *GatewayChannel) Name() string { return "gateway" }

// Send implements Channel.
func (c *GatewayChannel) Send(ctx context.Context, d *device.Device, n Notification) error {
	return c.client.PostJSON(ctx, c.url, gatewayPayload{
		DeviceKey: d.Key,
		Token:     d.Token,
		Category:  n.Category,
		Title:     n.Title,
		Body:      n.Body,
	})
}

// ExpoPublisher is the subset of the Expo push client used by ExpoChannel.
type ExpoPublisher interface {
	Publish(message *expo.PushMessage) (expo.PushResponse, error)
}

// ExpoChannel delivers through the Expo push service.
type ExpoChannel struct {
	client ExpoPublisher
}

// NewExpoChannel creates an Expo channel. An empty host uses the SDK default.
func NewExpoChannel(host string, timeout time.Duration) *ExpoChannel {
	return NewExpoChannelWithClient(expo.NewPushClient(&expo.ClientConfig{
		Host:       host,
		HTTPClient: &http.Client{Timeout: timeout},
	}))
}

// NewExpoChannelWithClient creates an Expo channel around an existing publisher.
func NewExpoChannelWithClient(client ExpoPublisher) *ExpoChannel {
	return &ExpoChannel{client: client}
}

// Name implements Channel.
func (c *ExpoChannel) Name() string { return "expo" }

// Send implements Channel.
func (c *ExpoChannel) Send(ctx context.Context, d *device.Device, n Notification) error {
	if d.Token == "" {
		return ErrMissingToken
	}
	token, err := expo.NewExponentPushToken(d.Token)
	if err != nil {
		return fmt.Errorf("invalid expo token: %w", err)
	}

	msg := &expo.PushMessage{
		To:       []expo.ExponentPushToken{token},
		Title:    n.Title,
		Body:     n.Body,
		Sound:    "default",
		Priority: expo.DefaultPriority,
	}
	if n.Category != "" {
		msg.Data = map[string]string{"category": n.Category}
	}

	// The SDK has no context support, so race the call against ctx.
	type outcome struct {
		resp expo.PushResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := c.client.Publish(msg)
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case out := <-done:
		if out.err != nil {
			return fmt.Errorf("publish: %w", out.err)
		}
		if err := out.resp.ValidateResponse(); err != nil {
			return err
		}
		return nil
	}
}

// LogChannel writes notifications to the log instead of delivering them.
type LogChannel struct {
	logger zerolog.Logger
}

// NewLogChannel creates a log channel.
func NewLogChannel(logger zerolog.Logger) *LogChannel {
	return &LogChannel{logger: logger.With().Str("channel", "log").Logger()}
}

// Name implements Channel.
func (c *LogChannel) Name() string { return "log" }

// Send implements Channel.
func (c *LogChannel) Send(_ context.Context, d *device.Device, n Notification) error {
	c.logger.Info().
		Str("device_key", d.Key).
		Str("category", n.Category).
		Str("title", n.Title).
		Str("body", n.Body).
		Msg("notification")
	return nil
}

var (
	_ Channel = (*GatewayChannel)(nil)
	_ Channel = (*ExpoChannel)(nil)
	_ Channel = (*LogChannel)(nil)
)

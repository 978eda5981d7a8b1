package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types carried in Pub/Sub messages.
const (
	JobScheduleTick = "schedule_tick"
	JobHealthCheck  = "health_check"
)

// PubSubHandler runs trigger ticks on demand from a Pub/Sub subscription,
// for deployments where an external scheduler publishes the clock.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	trigger          *Trigger
	logger           zerolog.Logger
	now              func() time.Time
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Trigger          *Trigger
	Logger           zerolog.Logger
}

// JobMessage is the body of a tick message.
type JobMessage struct {
	JobType string `json:"job_type"`
	// Now optionally pins the tick time. Zero uses the receive time.
	Now time.Time `json:"now,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Ticks are cheap to redeliver but must not pile up.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 2 * time.Minute

	h := newPubSubHandler(cfg.Trigger, cfg.Logger)
	h.client = client
	h.subscriber = subscriber
	h.subscriptionName = cfg.SubscriptionName
	return h, nil
}

func newPubSubHandler(trigger *Trigger, logger zerolog.Logger) *PubSubHandler {
	return &PubSubHandler{
		trigger: trigger,
		logger:  logger.With().Str("component", "pubsub").Logger(),
		now:     time.Now,
	}
}

// Start processes messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := h.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()

		if h.process(ctx, msg.Data, logger) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	if h.client == nil {
		return nil
	}
	return h.client.Close()
}

// process handles one message body and reports whether it should be acked.
// Malformed and unknown messages are acked so they are not redelivered.
func (h *PubSubHandler) process(ctx context.Context, data []byte, logger zerolog.Logger) bool {
	startTime := time.Now()

	var job JobMessage
	if err := json.Unmarshal(data, &job); err != nil {
		logger.Error().Err(err).Msg("failed to parse message, dropping")
		return true
	}

	var err error
	switch job.JobType {
	case JobScheduleTick:
		now := job.Now
		if now.IsZero() {
			now = h.now()
		}
		_, err = h.trigger.EvaluateTick(ctx, now)
	case JobHealthCheck:
		err = h.trigger.CheckStore(ctx)
	default:
		logger.Warn().Str("job_type", job.JobType).Msg("unknown job type")
		return true
	}

	if err != nil {
		logger.Error().Err(err).Str("job_type", job.JobType).Msg("job failed")
		return false
	}

	logger.Info().
		Str("job_type", job.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return true
}

package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pushrelay/pushrelay/internal/dispatch"
	"github.com/pushrelay/pushrelay/internal/push"
	"github.com/pushrelay/pushrelay/internal/schedule"
)

// ScheduleStore is the part of the schedule store the trigger uses.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time) ([]*schedule.Schedule, error)
	AdvanceNextFire(ctx context.Context, id string, expected, next time.Time) (bool, error)
}

// Deliverer sends a resolved push.
type Deliverer interface {
	Deliver(ctx context.Context, req push.Request) (*dispatch.Result, error)
}

// TriggerOptions holds the trigger's collaborators.
type TriggerOptions struct {
	Config     TriggerConfig
	Store      ScheduleStore
	Dispatcher Deliverer
	Logger     zerolog.Logger
}

// Trigger evaluates due schedules. EvaluateTick may be called concurrently;
// a schedule already being fired by this Trigger is skipped by later ticks,
// and the store's compare-and-swap stops ticks in other processes from
// advancing the same fire twice.
type Trigger struct {
	config     TriggerConfig
	store      ScheduleStore
	dispatcher Deliverer
	logger     zerolog.Logger
	limiter    *rate.Limiter

	inFlight sync.Map // schedule id -> struct{}
	metrics  *TriggerMetrics
}

// NewTrigger creates a new schedule trigger.
func NewTrigger(opts TriggerOptions) *Trigger {
	cfg := opts.Config.withDefaults()

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)
	}

	return &Trigger{
		config:     cfg,
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		logger:     opts.Logger.With().Str("component", "trigger").Logger(),
		limiter:    limiter,
		metrics:    &TriggerMetrics{},
	}
}

// TickResult summarizes one evaluation.
type TickResult struct {
	Now       time.Time
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Due            int
	Fired          int
	Delivered      int
	DeliveryFailed int
	Advanced       int
	Stale          int
	Skipped        int
	Errors         []FireError
}

// FireError records a per-schedule failure within a tick.
type FireError struct {
	ScheduleID string
	Stage      string
	Error      string
}

// Fire stages.
const (
	StageDeliver = "deliver"
	StageAdvance = "advance"
	StageCron    = "cron"
	StagePayload = "payload"
)

type fireResult struct {
	delivered bool
	advanced  bool
	stale     bool
	errors    []FireError
}

// EvaluateTick fires every enabled schedule due at now, oldest first, and
// advances each one to its next occurrence after now whether or not the
// delivery succeeded. A failure to list due schedules abandons the tick and
// is returned; everything else is per-schedule and reported in the result.
func (t *Trigger) EvaluateTick(ctx context.Context, now time.Time) (*TickResult, error) {
	start := time.Now()
	result := &TickResult{Now: now, StartTime: start}

	ctx, cancel := context.WithTimeout(ctx, t.config.TickTimeout)
	defer cancel()

	due, err := t.store.ListDue(ctx, now)
	if err != nil {
		t.metrics.recordAbandoned(time.Now())
		t.logger.Error().Err(err).Time("now", now).Msg("listing due schedules failed, tick abandoned")
		return nil, err
	}
	result.Due = len(due)

	if len(due) > 0 {
		t.logger.Debug().
			Int("due", len(due)).
			Int("concurrency", t.config.Concurrency).
			Time("now", now).
			Msg("evaluating tick")
	}

	jobs := make(chan *schedule.Schedule)
	results := make(chan fireResult, len(due))

	var wg sync.WaitGroup
	for i := 0; i < t.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				results <- t.fire(ctx, s, now)
				t.inFlight.Delete(s.ID)
			}
		}()
	}

	// Feed in due order so the oldest fire starts first.
feed:
	for _, s := range due {
		if _, busy := t.inFlight.LoadOrStore(s.ID, struct{}{}); busy {
			result.Skipped++
			t.logger.Debug().Str("schedule_id", s.ID).Msg("schedule already in flight, skipped")
			continue
		}
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				t.inFlight.Delete(s.ID)
				t.logger.Warn().Err(err).Msg("tick deadline reached while pacing, remaining schedules wait for the next tick")
				break feed
			}
		}
		select {
		case jobs <- s:
		case <-ctx.Done():
			t.inFlight.Delete(s.ID)
			t.logger.Warn().Err(ctx.Err()).Msg("tick deadline reached, remaining schedules wait for the next tick")
			break feed
		}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for fr := range results {
		result.Fired++
		if fr.delivered {
			result.Delivered++
		} else {
			result.DeliveryFailed++
		}
		if fr.advanced {
			result.Advanced++
		}
		if fr.stale {
			result.Stale++
		}
		result.Errors = append(result.Errors, fr.errors...)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)
	t.metrics.recordTick(result)

	if result.Due > 0 {
		t.logger.Info().
			Int("due", result.Due).
			Int("fired", result.Fired).
			Int("delivered", result.Delivered).
			Int("delivery_failed", result.DeliveryFailed).
			Int("advanced", result.Advanced).
			Int("stale", result.Stale).
			Int("skipped", result.Skipped).
			Dur("duration", result.Duration).
			Msg("tick completed")
	}

	return result, nil
}

// fire delivers one schedule and advances its bookkeeping.
func (t *Trigger) fire(ctx context.Context, s *schedule.Schedule, now time.Time) fireResult {
	var out fireResult
	logger := t.logger.With().
		Str("schedule_id", s.ID).
		Str("device_key", s.DeviceKey).
		Logger()

	req, err := push.FromPayload(s.DeviceKey, push.Fields{
		Category: s.Payload.Category,
		Title:    s.Payload.Title,
		Body:     s.Payload.Body,
	})
	if err != nil {
		out.errors = append(out.errors, FireError{ScheduleID: s.ID, Stage: StagePayload, Error: err.Error()})
		logger.Error().Err(err).Msg("schedule payload is invalid")
	} else {
		fireCtx, cancel := context.WithTimeout(ctx, t.config.FireTimeout)
		_, err = t.dispatcher.Deliver(fireCtx, *req)
		cancel()
		if err != nil {
			out.errors = append(out.errors, FireError{ScheduleID: s.ID, Stage: StageDeliver, Error: err.Error()})
			logger.Warn().Err(err).Msg("scheduled delivery failed, advancing anyway")
		} else {
			out.delivered = true
		}
	}

	if s.NextFireAt == nil {
		return out
	}
	expected := *s.NextFireAt

	next, err := schedule.NextFire(s.CronExpression, now)
	if err != nil {
		out.errors = append(out.errors, FireError{ScheduleID: s.ID, Stage: StageCron, Error: err.Error()})
		logger.Error().Err(err).Str("cron", s.CronExpression).Msg("cannot compute next fire")
		return out
	}

	ok, err := t.store.AdvanceNextFire(ctx, s.ID, expected, next)
	switch {
	case err != nil:
		out.errors = append(out.errors, FireError{ScheduleID: s.ID, Stage: StageAdvance, Error: err.Error()})
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn().Err(err).Msg("advance timed out, schedule will fire again next tick")
		} else {
			logger.Error().Err(err).Msg("advance failed, schedule will fire again next tick")
		}
	case !ok:
		out.stale = true
		logger.Info().Time("expected", expected).Msg("schedule changed during fire, not advanced")
	default:
		out.advanced = true
		logger.Debug().Time("next_fire_at", next).Msg("schedule advanced")
	}
	return out
}

// CheckStore verifies the schedule store is reachable.
func (t *Trigger) CheckStore(ctx context.Context) error {
	_, err := t.store.ListDue(ctx, time.Time{})
	return err
}

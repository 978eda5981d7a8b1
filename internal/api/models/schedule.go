package models

import "github.com/pushrelay/pushrelay/internal/schedule"

// SchedulePayload is the notification a schedule sends.
type SchedulePayload struct {
	Category string `json:"category,omitempty"`
	Title    string `json:"title,omitempty"`
	Body     string `json:"body"`
}

// ScheduleCreateRequest is the request body for creating a schedule.
type ScheduleCreateRequest struct {
	DeviceKey      string          `json:"device_key"`
	CronExpression string          `json:"cron_expression"`
	Payload        SchedulePayload `json:"payload"`
}

// SchedulePayloadPatch carries optional payload fields for an update.
type SchedulePayloadPatch struct {
	Category *string `json:"category,omitempty"`
	Title    *string `json:"title,omitempty"`
	Body     *string `json:"body,omitempty"`
}

// ScheduleUpdateRequest is the request body for a partial schedule update.
type ScheduleUpdateRequest struct {
	DeviceKey      *string               `json:"device_key,omitempty"`
	CronExpression *string               `json:"cron_expression,omitempty"`
	Payload        *SchedulePayloadPatch `json:"payload,omitempty"`
}

// ToInput converts the request into a service update.
func (r ScheduleUpdateRequest) ToInput() schedule.UpdateInput {
	in := schedule.UpdateInput{
		DeviceKey:      r.DeviceKey,
		CronExpression: r.CronExpression,
	}
	if r.Payload != nil {
		in.Category = r.Payload.Category
		in.Title = r.Payload.Title
		in.Body = r.Payload.Body
	}
	return in
}

// Schedule represents a stored recurring push.
type Schedule struct {
	ID             string          `json:"id"`
	DeviceKey      string          `json:"device_key"`
	CronExpression string          `json:"cron_expression"`
	Payload        SchedulePayload `json:"payload"`
	Enabled        bool            `json:"enabled"`
	NextFireAt     *Timestamp      `json:"next_fire_at"`
	CreatedAt      Timestamp       `json:"created_at"`
	UpdatedAt      Timestamp       `json:"updated_at"`
}

// ScheduleList is the response of the list endpoint.
type ScheduleList struct {
	Items []Schedule `json:"items"`
	Total int        `json:"total"`
}

// ScheduleFromDomain converts a stored schedule.
func ScheduleFromDomain(s *schedule.Schedule) Schedule {
	return Schedule{
		ID:             s.ID,
		DeviceKey:      s.DeviceKey,
		CronExpression: s.CronExpression,
		Payload: SchedulePayload{
			Category: s.Payload.Category,
			Title:    s.Payload.Title,
			Body:     s.Payload.Body,
		},
		Enabled:    s.Enabled,
		NextFireAt: TimestampPtr(s.NextFireAt),
		CreatedAt:  Timestamp(s.CreatedAt),
		UpdatedAt:  Timestamp(s.UpdatedAt),
	}
}

// SchedulesFromDomain converts a list of schedules, preserving order.
func SchedulesFromDomain(items []*schedule.Schedule) ScheduleList {
	out := ScheduleList{Items: make([]Schedule, 0, len(items)), Total: len(items)}
	for _, s := range items {
		out.Items = append(out.Items, ScheduleFromDomain(s))
	}
	return out
}

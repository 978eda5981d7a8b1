package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/pushrelay/internal/api/models"
	"github.com/pushrelay/pushrelay/internal/schedule"
)

func TestScheduleFromDomain_DisabledHasNullNextFire(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s := &schedule.Schedule{
		ID:             "sch_abc",
		DeviceKey:      "d1",
		CronExpression: "*/5 * * * *",
		Payload:        schedule.Payload{Title: "status", Body: "ok"},
		Enabled:        false,
		CreatedAt:      created,
		UpdatedAt:      created,
	}

	raw, err := json.Marshal(models.ScheduleFromDomain(s))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Nil(t, decoded["next_fire_at"])
	assert.Equal(t, false, decoded["enabled"])
	assert.Equal(t, "2024-03-01T09:00:00Z", decoded["created_at"])
}

func TestScheduleUpdateRequest_ToInput(t *testing.T) {
	var req models.ScheduleUpdateRequest
	require.NoError(t, json.Unmarshal([]byte(`{"cron_expression":"@hourly","payload":{"body":"new"}}`), &req))

	in := req.ToInput()
	require.NotNil(t, in.CronExpression)
	assert.Equal(t, "@hourly", *in.CronExpression)
	require.NotNil(t, in.Body)
	assert.Equal(t, "new", *in.Body)
	assert.Nil(t, in.Title)
	assert.Nil(t, in.DeviceKey)
}

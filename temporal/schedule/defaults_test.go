package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/tempo/errors"
)

func TestDefaultEvents(t *testing.T) {
	events, err := DefaultEvents()
	require.NoError(t, err)
	require.Len(t, events, 7)

	ids := make(map[string]bool)
	for _, ev := range events {
		require.NoError(t, ev.Validate())
		assert.True(t, ev.Enabled, ev.ID)
		assert.NotEmpty(t, ev.Payload, ev.ID)
		ids[ev.ID] = true
	}
	for _, id := range []string{"morning_energy", "day_overview", "midday_optimization",
		"evening_wind_down", "creative_spark", "wisdom_reflection", "weekend_adventure"} {
		assert.True(t, ids[id], id)
	}
}

func TestParseEventsYAML(t *testing.T) {
	events, err := ParseEventsYAML([]byte(`
- id: quiet
  name: Quiet
  target: mimir
  payload: hush
  schedule_time: "21:00"
  days: [friday]
  enabled: false
`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Enabled)
	assert.Equal(t, []string{"friday"}, events[0].Days)

	_, err = ParseEventsYAML([]byte(`
- id: dated
  target: mimir
  schedule_time: "21:00"
  days: ["2025-07-02"]
`))
	assert.True(t, errors.IsValidationError(err))

	_, err = ParseEventsYAML([]byte(`{not: [a list`))
	assert.Error(t, err)
}

func TestSeedDefaults(t *testing.T) {
	store := NewStore(createTestDB(t), zap.NewNop().Sugar())
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 6, 0, 0, 0, time.UTC)

	seeded, err := store.SeedDefaults(ctx, now)
	require.NoError(t, err)
	assert.Len(t, seeded, 7)

	ev, err := store.GetEvent(ctx, "morning_energy")
	require.NoError(t, err)
	assert.Equal(t, DefaultCreator, ev.CreatedBy)

	// user edits survive a second seed
	ev.ScheduleTime = "06:45"
	require.NoError(t, store.UpsertEvent(ctx, ev))
	require.NoError(t, store.SetEnabled(ctx, "creative_spark", false))

	seeded, err = store.SeedDefaults(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, seeded)

	ev, err = store.GetEvent(ctx, "morning_energy")
	require.NoError(t, err)
	assert.Equal(t, "06:45", ev.ScheduleTime)

	spark, err := store.GetEvent(ctx, "creative_spark")
	require.NoError(t, err)
	assert.False(t, spark.Enabled)
}

package commands

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/tempo/db"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/temporal/engine"
	"github.com/teranos/tempo/temporal/schedule"
)

func TestParseToggleState(t *testing.T) {
	for _, s := range []string{"on", "ON", " enable ", "true", "1"} {
		got, err := parseToggleState(s)
		require.NoError(t, err, s)
		assert.True(t, got, s)
	}
	for _, s := range []string{"off", "Disabled", "false", "0"} {
		got, err := parseToggleState(s)
		require.NoError(t, err, s)
		assert.False(t, got, s)
	}
	_, err := parseToggleState("maybe")
	assert.Error(t, err)
}

func TestParsePlanFile(t *testing.T) {
	req, err := parsePlanFile([]byte(`
date: "2025-07-05"
created_by: odin
notes: rainy saturday
events:
  - name: Museum Visit
    target: luci
    schedule_time: "11:00"
    payload: find an exhibit
`))
	require.NoError(t, err)
	assert.Equal(t, "2025-07-05", req.Date)
	assert.Equal(t, "odin", req.CreatedBy)
	require.Len(t, req.Events, 1)
	assert.Equal(t, "luci", req.Events[0].Target)
	assert.Equal(t, "11:00", req.Events[0].ScheduleTime)

	// JSON is valid YAML
	req, err = parsePlanFile([]byte(`{"date":"2025-07-06","events":[{"name":"Tea","target":"freya","schedule_time":"16:00"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Tea", req.Events[0].Name)

	_, err = parsePlanFile([]byte(`date: "2025-07-06"`))
	assert.Error(t, err)
	_, err = parsePlanFile([]byte(`events: [`))
	assert.Error(t, err)
}

func TestRenderSettings(t *testing.T) {
	settings := map[string]interface{}{
		"engine": map[string]interface{}{"timezone": "America/Toronto", "poll_interval_seconds": 30},
	}

	out, err := renderSettings(settings, "json")
	require.NoError(t, err)
	var decoded map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "America/Toronto", decoded["engine"]["timezone"])

	out, err = renderSettings(settings, "toml")
	require.NoError(t, err)
	var fromToml map[string]map[string]interface{}
	require.NoError(t, toml.Unmarshal([]byte(out), &fromToml))
	assert.Equal(t, "America/Toronto", fromToml["engine"]["timezone"])

	out, err = renderSettings(settings, "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "timezone: America/Toronto")

	_, err = renderSettings(settings, "xml")
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m", formatDuration(10*time.Second))
	assert.Equal(t, "12m", formatDuration(12*time.Minute))
	assert.Equal(t, "1h05m", formatDuration(65*time.Minute))
	assert.Equal(t, "26h00m", formatDuration(26*time.Hour))
}

func TestSummaryLine(t *testing.T) {
	assert.Equal(t, "first", summaryLine(schedule.ExecutionLog{Success: true, Result: "first\nsecond"}))
	assert.Equal(t, "boom", summaryLine(schedule.ExecutionLog{Success: false, Result: "ignored", Error: "boom"}))

	long := summaryLine(schedule.ExecutionLog{Success: true, Result: string(make([]rune, 100))})
	assert.Len(t, []rune(long), 60)
}

func TestListings(t *testing.T) {
	ok := &schedule.ScheduledEvent{ID: "a", Target: "saga", ScheduleTime: "08:00", Days: []string{"daily"}}
	rows := []schedule.StoredEvent{
		{Event: ok, Raw: schedule.EventRow{ID: "a", Days: `["daily"]`}},
		{Raw: schedule.EventRow{ID: "b", Days: `["2025-07-02"]`}, Invalid: &schedule.ValidationError{EventID: "b", Field: "days", Reason: "unknown day token"}},
	}

	got := listings(rows)
	require.Len(t, got, 2)
	assert.Equal(t, ok, got[0].Event)
	assert.Empty(t, got[0].Invalid)
	assert.Nil(t, got[1].Event)
	assert.Equal(t, `["2025-07-02"]`, got[1].Days)
	assert.Contains(t, got[1].Invalid, "unknown day token")
}

func TestResultDetailFollowsVerbosity(t *testing.T) {
	res := &engine.Result{
		EventID:    "morning",
		Outcome:    engine.OutcomeSucceeded,
		Output:     strings.Repeat("x", 600),
		DurationMS: 42,
	}

	assert.Empty(t, resultTiming(res, logger.VerbosityUser))
	assert.Empty(t, resultTiming(res, logger.VerbosityInfo))
	assert.Equal(t, " (42ms)", resultTiming(res, logger.VerbosityDebug))

	preview := resultOutput(res, logger.VerbosityDebug)
	assert.True(t, strings.HasSuffix(preview, "(truncated)"))
	assert.Less(t, len(preview), 600)
	assert.Equal(t, res.Output, resultOutput(res, logger.VerbosityTrace))
}

func TestMigrationRows(t *testing.T) {
	at := time.Date(2025, 7, 1, 12, 0, 5, 0, time.UTC)
	migrations := []db.Migration{
		{Version: "000", File: "000_create_schema_migrations.sql", AppliedAt: &at},
		{Version: "001", File: "001_create_automation_tables.sql"},
	}

	rows := migrationRows(migrations)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"000", "000_create_schema_migrations.sql", "2025-07-01 12:00"}, rows[0])
	assert.Equal(t, "pending", rows[1][2])
	assert.Equal(t, 1, pendingCount(migrations))
}

package schedule

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/tempo/errors"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"08:00", 8, 0, false},
		{"8:05", 8, 5, false},
		{" 23:59 ", 23, 59, false},
		{"00:00", 0, 0, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"12:5", 0, 0, true},
		{"noon", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, h)
			assert.Equal(t, tt.minute, m)
		})
	}
}

func TestIsValidDayToken(t *testing.T) {
	for _, tok := range []string{"daily", "weekday", "weekend", "monday", "Sunday", " FRIDAY "} {
		assert.True(t, IsValidDayToken(tok), tok)
	}
	for _, tok := range []string{"", "2025-07-02", "mon", "weekdays", "every day"} {
		assert.False(t, IsValidDayToken(tok), tok)
	}
}

func TestMatchesDay(t *testing.T) {
	assert.True(t, MatchesDay([]string{"daily"}, time.Sunday))
	assert.True(t, MatchesDay([]string{"weekday"}, time.Monday))
	assert.False(t, MatchesDay([]string{"weekday"}, time.Saturday))
	assert.True(t, MatchesDay([]string{"weekend"}, time.Sunday))
	assert.False(t, MatchesDay([]string{"weekend"}, time.Friday))
	assert.True(t, MatchesDay([]string{"monday", "wednesday"}, time.Wednesday))
	assert.False(t, MatchesDay([]string{"monday", "wednesday"}, time.Tuesday))
	assert.False(t, MatchesDay(nil, time.Tuesday))
	assert.False(t, MatchesDay([]string{"2025-07-02"}, time.Wednesday))
}

func TestDayToken(t *testing.T) {
	assert.Equal(t, "tuesday", DayToken(time.Tuesday))
	assert.True(t, IsValidDayToken(DayToken(time.Saturday)))
}

func TestValidate(t *testing.T) {
	valid := func() *ScheduledEvent {
		return &ScheduledEvent{ID: "e", Target: "saga", ScheduleTime: "08:00", Days: []string{"daily"}}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(*ScheduledEvent){
		"id":            func(e *ScheduledEvent) { e.ID = " " },
		"target":        func(e *ScheduledEvent) { e.Target = "" },
		"schedule_time": func(e *ScheduledEvent) { e.ScheduleTime = "25:00" },
		"days":          func(e *ScheduledEvent) { e.Days = []string{"someday"} },
	}
	for field, mutate := range tests {
		t.Run(field, func(t *testing.T) {
			ev := valid()
			mutate(ev)
			err := ev.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, field, verr.Field)
			assert.True(t, errors.IsValidationError(err))
		})
	}

	t.Run("empty days", func(t *testing.T) {
		ev := valid()
		ev.Days = nil
		assert.True(t, errors.IsValidationError(ev.Validate()))
	})
}

func TestDecodeEvent(t *testing.T) {
	base := EventRow{
		ID:           "morning",
		Name:         "Morning",
		Target:       "freya",
		Payload:      "hello",
		ScheduleTime: "07:30",
		Days:         `["Daily"]`,
		Enabled:      true,
		CreatedAt:    sql.NullString{String: "2025-07-01T10:00:00Z", Valid: true},
		LastRun:      sql.NullString{String: "2025-07-01 11:30:00", Valid: true},
	}

	t.Run("normalizes tokens and timestamps", func(t *testing.T) {
		ev, err := DecodeEvent(base)
		require.NoError(t, err)
		assert.Equal(t, []string{"daily"}, ev.Days)
		assert.Equal(t, time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC), ev.CreatedAt)
		require.NotNil(t, ev.LastRun)
		assert.Equal(t, 11, ev.LastRun.Hour())
	})

	t.Run("no last run", func(t *testing.T) {
		row := base
		row.LastRun = sql.NullString{}
		ev, err := DecodeEvent(row)
		require.NoError(t, err)
		assert.Nil(t, ev.LastRun)
	})

	t.Run("malformed days json", func(t *testing.T) {
		row := base
		row.Days = "daily"
		_, err := DecodeEvent(row)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("date in days", func(t *testing.T) {
		row := base
		row.Days = `["2025-07-02"]`
		_, err := DecodeEvent(row)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("bad last run", func(t *testing.T) {
		row := base
		row.LastRun = sql.NullString{String: "yesterday", Valid: true}
		_, err := DecodeEvent(row)
		assert.True(t, errors.IsValidationError(err))
	})
}

func TestCloneIsDeep(t *testing.T) {
	ran := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	ev := &ScheduledEvent{ID: "e", Days: []string{"daily"}, LastRun: &ran}

	c := ev.Clone()
	c.Days[0] = "weekend"
	*c.LastRun = ran.Add(time.Hour)

	assert.Equal(t, "daily", ev.Days[0])
	assert.Equal(t, ran, *ev.LastRun)
	assert.Nil(t, (*ScheduledEvent)(nil).Clone())
}

func TestPlannedEventID(t *testing.T) {
	assert.Equal(t, "odin_2025-07-01_morning_run", PlannedEventID("odin", "2025-07-01", "Morning  Run"))
}

func TestPlannedEventToScheduledEvent(t *testing.T) {
	loc := toronto(t)
	day := time.Date(2025, 7, 1, 0, 0, 0, 0, loc)
	now := day.Add(6 * time.Hour)

	p := PlannedEvent{Name: "Stretch Break", Target: "freya", Payload: "stretch", ScheduleTime: "10:15"}
	ev := p.ToScheduledEvent("odin", day, now)

	assert.Equal(t, "odin_2025-07-01_stretch_break", ev.ID)
	assert.Equal(t, []string{"tuesday"}, ev.Days)
	assert.True(t, ev.Enabled)
	assert.Equal(t, "odin", ev.CreatedBy)
	require.NoError(t, ev.Validate())

	p.ID = "custom"
	assert.Equal(t, "custom", p.ToScheduledEvent("odin", day, now).ID)
}

func TestParsePlanDate(t *testing.T) {
	loc := toronto(t)
	d, err := ParsePlanDate("2025-07-05", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Saturday, d.Weekday())

	_, err = ParsePlanDate("07/05/2025", loc)
	assert.True(t, errors.IsValidationError(err))
}

package engine

import (
	"time"

	"github.com/teranos/tempo/temporal/schedule"
)

// TimeSegment is a coarse part of the day.
type TimeSegment string

const (
	SegmentEarlyMorning TimeSegment = "early_morning" // 05:00-07:00
	SegmentMorning      TimeSegment = "morning"       // 07:00-09:00
	SegmentWorkday      TimeSegment = "workday"       // 09:00-17:00
	SegmentEvening      TimeSegment = "evening"       // 17:00-21:00
	SegmentNight        TimeSegment = "night"         // 21:00-05:00
)

// SegmentAt returns the segment containing hour (0-23).
func SegmentAt(hour int) TimeSegment {
	switch {
	case hour >= 5 && hour < 7:
		return SegmentEarlyMorning
	case hour >= 7 && hour < 9:
		return SegmentMorning
	case hour >= 9 && hour < 17:
		return SegmentWorkday
	case hour >= 17 && hour < 21:
		return SegmentEvening
	}
	return SegmentNight
}

// SeasonOf returns the northern-hemisphere meteorological season.
func SeasonOf(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	}
	return "fall"
}

// TimeContext is a snapshot of "now" in the engine timezone.
type TimeContext struct {
	Now      time.Time   `json:"now"`
	Timezone string      `json:"timezone"`
	Segment  TimeSegment `json:"time_segment"`
	Weekday  string      `json:"weekday"`
	Weekend  bool        `json:"is_weekend"`
	Season   string      `json:"season"`
}

// NewTimeContext builds the snapshot for now in loc.
func NewTimeContext(now time.Time, loc *time.Location) TimeContext {
	local := now.In(loc)
	wd := local.Weekday()
	return TimeContext{
		Now:      local,
		Timezone: loc.String(),
		Segment:  SegmentAt(local.Hour()),
		Weekday:  schedule.DayToken(wd),
		Weekend:  wd == time.Saturday || wd == time.Sunday,
		Season:   SeasonOf(local.Month()),
	}
}

// EventSummary is the compact event shape used in status views.
type EventSummary struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Target       string     `json:"target"`
	ScheduleTime string     `json:"schedule_time"`
	Days         []string   `json:"days"`
	Enabled      bool       `json:"enabled"`
	LastRun      *time.Time `json:"last_run,omitempty"`
}

func summarize(ev *schedule.ScheduledEvent) EventSummary {
	return EventSummary{
		ID:           ev.ID,
		Name:         ev.Name,
		Target:       ev.Target,
		ScheduleTime: ev.ScheduleTime,
		Days:         ev.Days,
		Enabled:      ev.Enabled,
		LastRun:      ev.LastRun,
	}
}

// NextEvent is the upcoming automation and when it becomes due.
type NextEvent struct {
	Event EventSummary  `json:"event"`
	At    time.Time     `json:"at"`
	In    time.Duration `json:"in"`
}

// Status is the engine snapshot returned by Engine.Status.
type Status struct {
	Context         TimeContext                `json:"context"`
	Running         bool                       `json:"running"`
	TotalEvents     int                        `json:"total_events"`
	EnabledEvents   int                        `json:"enabled_events"`
	PendingCount    int                        `json:"pending_count"`
	Pending         []EventSummary             `json:"pending"`
	Next            *NextEvent                 `json:"next,omitempty"`
	ExecutionsToday int                        `json:"executions_today"`
	Recent          []schedule.ExecutionRecord `json:"recent"`
	Degraded        bool                       `json:"degraded,omitempty"` // store unreadable; counts from memory
}

// RecentView is the result of Engine.Recent.
type RecentView struct {
	Hours    int                        `json:"hours"`
	Records  []schedule.ExecutionRecord `json:"records"`
	Degraded bool                       `json:"degraded,omitempty"`
}

// Details is the single-event view returned by Engine.Details.
type Details struct {
	Event      *schedule.ScheduledEvent `json:"event"`
	Next       *time.Time               `json:"next,omitempty"`
	LastResult *Result                  `json:"last_result,omitempty"`
	Logs       []schedule.ExecutionLog  `json:"logs"`
}

// TodayEntry is one automation scheduled for the current day.
type TodayEntry struct {
	Event EventSummary `json:"event"`
	At    time.Time    `json:"at"`
	Done  bool         `json:"done"`
}

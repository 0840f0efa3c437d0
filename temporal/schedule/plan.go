package schedule

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the YYYY-MM-DD key of a daily plan.
const DateLayout = "2006-01-02"

// PlannedEvent is the snapshot of one event inside a DailyPlan.
type PlannedEvent struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Target       string `json:"target" yaml:"target"`
	Payload      string `json:"payload" yaml:"payload"`
	ScheduleTime string `json:"schedule_time" yaml:"schedule_time"`
}

// DailyPlan records what a planner scheduled for a date. It is an audit
// trail only; execution is driven by scheduled_events.
type DailyPlan struct {
	Date      string         `json:"date"`
	Events    []PlannedEvent `json:"events"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	Notes     string         `json:"notes,omitempty"`
}

// ParsePlanDate validates a YYYY-MM-DD plan key.
func ParsePlanDate(date string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Value: date, Reason: "expected YYYY-MM-DD"}
	}
	return t, nil
}

// PlannedEventID derives a stable id for a planned event lacking one:
// "<creator>_<date>_<name_slug>".
func PlannedEventID(creator, date, name string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(name), "_"))
	return fmt.Sprintf("%s_%s_%s", creator, date, slug)
}

// ToScheduledEvent turns a planned event into a one-weekday ScheduledEvent
// for the plan date.
func (p PlannedEvent) ToScheduledEvent(creator string, day time.Time, now time.Time) *ScheduledEvent {
	id := p.ID
	if id == "" {
		id = PlannedEventID(creator, day.Format(DateLayout), p.Name)
	}
	return &ScheduledEvent{
		ID:           id,
		Name:         p.Name,
		Target:       p.Target,
		Payload:      p.Payload,
		ScheduleTime: p.ScheduleTime,
		Days:         []string{DayToken(day.Weekday())},
		Enabled:      true,
		CreatedBy:    creator,
		CreatedAt:    now,
	}
}

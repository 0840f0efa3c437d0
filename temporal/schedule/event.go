// Package schedule holds the automation data model, its SQLite stores and
// the eligibility rules that decide when an event is due.
package schedule

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/tempo/errors"
)

// Day tokens accepted in ScheduledEvent.Days.
const (
	DayDaily     = "daily"
	DayWeekday   = "weekday"
	DayWeekend   = "weekend"
	DayMonday    = "monday"
	DayTuesday   = "tuesday"
	DayWednesday = "wednesday"
	DayThursday  = "thursday"
	DayFriday    = "friday"
	DaySaturday  = "saturday"
	DaySunday    = "sunday"
)

var weekdayTokens = map[string]time.Weekday{
	DaySunday:    time.Sunday,
	DayMonday:    time.Monday,
	DayTuesday:   time.Tuesday,
	DayWednesday: time.Wednesday,
	DayThursday:  time.Thursday,
	DayFriday:    time.Friday,
	DaySaturday:  time.Saturday,
}

// IsValidDayToken reports whether tok belongs to the closed day-token set.
// Tokens are compared after trimming and lowercasing.
func IsValidDayToken(tok string) bool {
	switch normalizeToken(tok) {
	case DayDaily, DayWeekday, DayWeekend:
		return true
	}
	_, ok := weekdayTokens[normalizeToken(tok)]
	return ok
}

// DayToken returns the token naming the given weekday ("monday").
func DayToken(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}

func normalizeToken(tok string) string {
	return strings.ToLower(strings.TrimSpace(tok))
}

// MatchesDay reports whether any token in days selects wd.
func MatchesDay(days []string, wd time.Weekday) bool {
	weekend := wd == time.Saturday || wd == time.Sunday
	for _, tok := range days {
		switch t := normalizeToken(tok); t {
		case DayDaily:
			return true
		case DayWeekday:
			if !weekend {
				return true
			}
		case DayWeekend:
			if weekend {
				return true
			}
		default:
			if d, ok := weekdayTokens[t]; ok && d == wd {
				return true
			}
		}
	}
	return false
}

// ScheduledEvent is a recurring automation: at ScheduleTime on the days
// selected by Days, send Payload to Target. It runs at most once per
// calendar day in the engine timezone, tracked through LastRun.
type ScheduledEvent struct {
	ID           string     `json:"id" yaml:"id"`
	Name         string     `json:"name" yaml:"name"`
	Target       string     `json:"target" yaml:"target"`
	Payload      string     `json:"payload" yaml:"payload"`
	ScheduleTime string     `json:"schedule_time" yaml:"schedule_time"` // HH:MM, 24h
	Days         []string   `json:"days" yaml:"days"`
	Enabled      bool       `json:"enabled" yaml:"-"`
	CreatedBy    string     `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at" yaml:"-"`
	LastRun      *time.Time `json:"last_run,omitempty" yaml:"-"`
}

// Clone returns a deep copy so callers never share Days or LastRun.
func (e *ScheduledEvent) Clone() *ScheduledEvent {
	if e == nil {
		return nil
	}
	c := *e
	c.Days = append([]string(nil), e.Days...)
	if e.LastRun != nil {
		t := *e.LastRun
		c.LastRun = &t
	}
	return &c
}

// RanOn reports whether LastRun falls on the same calendar date as day in loc.
func (e *ScheduledEvent) RanOn(day time.Time, loc *time.Location) bool {
	if e.LastRun == nil {
		return false
	}
	return SameDate(*e.LastRun, day, loc)
}

// Validate checks the fields the scheduler depends on.
// Returns a *ValidationError naming the first offending field.
func (e *ScheduledEvent) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return &ValidationError{EventID: e.ID, Field: "id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(e.Target) == "" {
		return &ValidationError{EventID: e.ID, Field: "target", Reason: "must not be empty"}
	}
	if _, _, err := ParseClock(e.ScheduleTime); err != nil {
		return &ValidationError{EventID: e.ID, Field: "schedule_time", Value: e.ScheduleTime, Reason: err.Error()}
	}
	if len(e.Days) == 0 {
		return &ValidationError{EventID: e.ID, Field: "days", Value: "[]", Reason: "at least one day token is required"}
	}
	for _, tok := range e.Days {
		if !IsValidDayToken(tok) {
			return &ValidationError{EventID: e.ID, Field: "days", Value: tok, Reason: "unknown day token"}
		}
	}
	return nil
}

// ValidationError reports malformed schedule data for one event.
// It matches errors.ErrValidation under errors.Is.
type ValidationError struct {
	EventID string
	Field   string
	Value   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("event %s: invalid %s %q: %s", e.EventID, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("event %s: invalid %s: %s", e.EventID, e.Field, e.Reason)
}

// Is makes errors.Is(err, errors.ErrValidation) hold.
func (e *ValidationError) Is(target error) bool {
	return target == errors.ErrValidation
}

// ParseClock parses "HH:MM" (24h). Single-digit hours are accepted.
func ParseClock(s string) (hour, minute int, err error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(ms) != 2 || len(hs) == 0 || len(hs) > 2 {
		return 0, 0, errors.Newf("schedule time %q is not HH:MM", s)
	}
	hour, err = strconv.Atoi(hs)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, errors.Newf("schedule time %q has invalid hour", s)
	}
	minute, err = strconv.Atoi(ms)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, errors.Newf("schedule time %q has invalid minute", s)
	}
	return hour, minute, nil
}

// SameDate reports whether a and b fall on the same calendar date in loc.
func SameDate(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// EventRow is the raw scheduled_events row before validation.
type EventRow struct {
	ID           string
	Name         string
	Target       string
	Payload      string
	ScheduleTime string
	Days         string
	Enabled      bool
	CreatedBy    sql.NullString
	CreatedAt    sql.NullString
	LastRun      sql.NullString
}

// DecodeEvent turns a stored row into a validated ScheduledEvent.
// Malformed days JSON, unknown or empty day tokens, and bad schedule_time
// all produce a *ValidationError; the row is never partially trusted.
func DecodeEvent(row EventRow) (*ScheduledEvent, error) {
	days, err := DecodeDays(row.Days)
	if err != nil {
		return nil, &ValidationError{EventID: row.ID, Field: "days", Value: row.Days, Reason: err.Error()}
	}

	ev := &ScheduledEvent{
		ID:           row.ID,
		Name:         row.Name,
		Target:       row.Target,
		Payload:      row.Payload,
		ScheduleTime: strings.TrimSpace(row.ScheduleTime),
		Days:         days,
		Enabled:      row.Enabled,
		CreatedBy:    row.CreatedBy.String,
	}
	for i, tok := range ev.Days {
		ev.Days[i] = normalizeToken(tok)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	if row.CreatedAt.Valid && row.CreatedAt.String != "" {
		t, err := parseTimestamp(row.CreatedAt.String)
		if err != nil {
			return nil, &ValidationError{EventID: row.ID, Field: "created_at", Value: row.CreatedAt.String, Reason: err.Error()}
		}
		ev.CreatedAt = t
	}
	if row.LastRun.Valid && row.LastRun.String != "" {
		t, err := parseTimestamp(row.LastRun.String)
		if err != nil {
			return nil, &ValidationError{EventID: row.ID, Field: "last_run", Value: row.LastRun.String, Reason: err.Error()}
		}
		ev.LastRun = &t
	}
	return ev, nil
}

// DecodeDays parses the JSON array stored in scheduled_events.days.
func DecodeDays(raw string) ([]string, error) {
	var days []string
	if err := json.Unmarshal([]byte(raw), &days); err != nil {
		return nil, errors.Wrap(err, "days is not a JSON string array")
	}
	return days, nil
}

// EncodeDays renders days as the JSON array stored in scheduled_events.days.
func EncodeDays(days []string) string {
	if days == nil {
		days = []string{}
	}
	b, _ := json.Marshal(days)
	return string(b)
}

// timestamps are stored as RFC3339 text in UTC so they sort lexically
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp also accepts the naive ISO forms written by older planners.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Newf("unrecognized timestamp %q", s)
}

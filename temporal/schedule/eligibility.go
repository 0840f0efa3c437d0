package schedule

import "time"

// Evaluator decides whether events are due. It is pure: the same event and
// instant always give the same answer.
type Evaluator struct {
	Location  *time.Location
	Tolerance time.Duration
}

// NewEvaluator creates an evaluator for the engine timezone.
func NewEvaluator(loc *time.Location, tolerance time.Duration) *Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{Location: loc, Tolerance: tolerance}
}

// IsDue reports whether ev should run at now: enabled, not already run
// today, within Tolerance of its schedule time on the same calendar day,
// and on a selected weekday.
func (e *Evaluator) IsDue(ev *ScheduledEvent, now time.Time) bool {
	if ev == nil || !ev.Enabled {
		return false
	}
	local := now.In(e.Location)
	if ev.RanOn(local, e.Location) {
		return false
	}
	if !MatchesDay(ev.Days, local.Weekday()) {
		return false
	}
	offset, ok := e.clockOffset(ev, local)
	if !ok {
		return false
	}
	if offset < 0 {
		offset = -offset
	}
	return offset <= e.Tolerance
}

// clockOffset is now's time of day minus the schedule time, both as
// seconds since local midnight. It never wraps across midnight.
func (e *Evaluator) clockOffset(ev *ScheduledEvent, local time.Time) (time.Duration, bool) {
	h, m, err := ParseClock(ev.ScheduleTime)
	if err != nil {
		return 0, false
	}
	scheduled := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	clock := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second
	return clock - scheduled, true
}

// Suppressed reports whether ev already ran on now's calendar date.
func (e *Evaluator) Suppressed(ev *ScheduledEvent, now time.Time) bool {
	return ev.RanOn(now, e.Location)
}

// Pending returns the due events in input order.
func (e *Evaluator) Pending(events []*ScheduledEvent, now time.Time) []*ScheduledEvent {
	var due []*ScheduledEvent
	for _, ev := range events {
		if e.IsDue(ev, now) {
			due = append(due, ev)
		}
	}
	return due
}

// ScheduledOn reports whether ev's day pattern selects day's weekday.
func (e *Evaluator) ScheduledOn(ev *ScheduledEvent, day time.Time) bool {
	return MatchesDay(ev.Days, day.In(e.Location).Weekday())
}

// Next returns the next instant at or after now when ev would become due.
// A window already open counts (its start may lie in the past). Returns
// false for disabled or malformed events.
func (e *Evaluator) Next(ev *ScheduledEvent, now time.Time) (time.Time, bool) {
	if ev == nil || !ev.Enabled {
		return time.Time{}, false
	}
	h, m, err := ParseClock(ev.ScheduleTime)
	if err != nil {
		return time.Time{}, false
	}
	local := now.In(e.Location)
	y, mo, d := local.Date()

	for i := 0; i <= 7; i++ {
		candidate := time.Date(y, mo, d+i, h, m, 0, 0, e.Location)
		if !MatchesDay(ev.Days, candidate.Weekday()) {
			continue
		}
		if i == 0 {
			if ev.RanOn(local, e.Location) || local.After(candidate.Add(e.Tolerance)) {
				continue
			}
		}
		return candidate, true
	}
	return time.Time{}, false
}

// NextAmong returns the event with the earliest Next instant.
// Ties go to the earlier position in events.
func (e *Evaluator) NextAmong(events []*ScheduledEvent, now time.Time) (*ScheduledEvent, time.Time, bool) {
	var best *ScheduledEvent
	var bestAt time.Time
	for _, ev := range events {
		at, ok := e.Next(ev, now)
		if !ok {
			continue
		}
		if best == nil || at.Before(bestAt) {
			best, bestAt = ev, at
		}
	}
	return best, bestAt, best != nil
}

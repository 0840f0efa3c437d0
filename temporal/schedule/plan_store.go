package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/tempo/errors"
)

// PlanStore persists daily plans keyed by date
type PlanStore struct {
	db *sql.DB
}

// NewPlanStore creates a new daily plan store
func NewPlanStore(db *sql.DB) *PlanStore {
	return &PlanStore{db: db}
}

// SaveDailyPlan inserts or replaces the plan for plan.Date.
func (s *PlanStore) SaveDailyPlan(ctx context.Context, plan *DailyPlan) error {
	events := plan.Events
	if events == nil {
		events = []PlannedEvent{}
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return errors.Wrapf(err, "failed to encode plan %s", plan.Date)
	}
	createdAt := plan.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO daily_plans (date, events_json, created_by, created_at, notes)
		VALUES (?, ?, ?, ?, ?)`,
		plan.Date, string(eventsJSON), plan.CreatedBy, formatTimestamp(createdAt), plan.Notes,
	)
	if err != nil {
		return errors.WrapStorage(err, "failed to save daily plan %s", plan.Date)
	}
	return nil
}

// LoadDailyPlan returns the plan for date, or nil, nil when none exists.
func (s *PlanStore) LoadDailyPlan(ctx context.Context, date string) (*DailyPlan, error) {
	var plan DailyPlan
	var eventsJSON, createdAt string
	var createdBy, notes sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT date, events_json, created_by, created_at, notes
		FROM daily_plans WHERE date = ?`, date,
	).Scan(&plan.Date, &eventsJSON, &createdBy, &createdAt, &notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WrapStorage(err, "failed to load daily plan %s", date)
	}

	if err := json.Unmarshal([]byte(eventsJSON), &plan.Events); err != nil {
		return nil, errors.Wrapf(err, "daily plan %s has malformed events_json", date)
	}
	if t, err := parseTimestamp(createdAt); err == nil {
		plan.CreatedAt = t
	}
	plan.CreatedBy = createdBy.String
	plan.Notes = notes.String
	return &plan, nil
}

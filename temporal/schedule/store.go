package schedule

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
)

// Store handles persistence of scheduled events
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore creates a new event store. A nil logger uses the global logger.
func NewStore(db *sql.DB, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = logger.Logger
	}
	return &Store{db: db, logger: logger.AddDBSymbol(log)}
}

const eventColumns = `id, name, target, payload, schedule_time, days, enabled, created_by, created_at, last_run`

// UpsertEvent inserts ev or replaces the row with the same id.
func (s *Store) UpsertEvent(ctx context.Context, ev *ScheduledEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var lastRun interface{}
	if ev.LastRun != nil {
		lastRun = formatTimestamp(*ev.LastRun)
	}
	var createdBy interface{}
	if ev.CreatedBy != "" {
		createdBy = ev.CreatedBy
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO scheduled_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.Name,
		ev.Target,
		ev.Payload,
		ev.ScheduleTime,
		EncodeDays(ev.Days),
		ev.Enabled,
		createdBy,
		formatTimestamp(createdAt),
		lastRun,
	)
	if err != nil {
		return errors.WrapStorage(err, "failed to upsert event %s", ev.ID)
	}
	return nil
}

// LoadEnabledEvents returns every enabled event that passes validation.
// Invalid rows are skipped with a warning; SanitizeInvalidDays quarantines them.
func (s *Store) LoadEnabledEvents(ctx context.Context) ([]*ScheduledEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM scheduled_events
		WHERE enabled = 1
		ORDER BY id`)
	if err != nil {
		return nil, errors.WrapStorage(err, "failed to query enabled events")
	}
	defer rows.Close()

	var events []*ScheduledEvent
	for rows.Next() {
		row, err := scanEventRow(rows)
		if err != nil {
			return nil, errors.WrapStorage(err, "failed to scan event")
		}
		ev, err := DecodeEvent(row)
		if err != nil {
			s.logger.Warnw("Skipping invalid scheduled event",
				logger.FieldEventID, row.ID,
				logger.FieldError, err.Error(),
			)
			continue
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStorage(err, "failed to iterate events")
	}
	return events, nil
}

// StoredEvent is a row from ListEvents: the decoded event, or the raw row
// with the validation error that kept it from decoding.
type StoredEvent struct {
	Event   *ScheduledEvent
	Raw     EventRow
	Invalid error
}

// ListEvents returns every row, enabled or not, valid or not, ordered by id.
func (s *Store) ListEvents(ctx context.Context) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM scheduled_events ORDER BY id`)
	if err != nil {
		return nil, errors.WrapStorage(err, "failed to list events")
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		row, err := scanEventRow(rows)
		if err != nil {
			return nil, errors.WrapStorage(err, "failed to scan event")
		}
		ev, decodeErr := DecodeEvent(row)
		out = append(out, StoredEvent{Event: ev, Raw: row, Invalid: decodeErr})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStorage(err, "failed to iterate events")
	}
	return out, nil
}

// GetEvent returns one event regardless of its enabled flag.
func (s *Store) GetEvent(ctx context.Context, id string) (*ScheduledEvent, error) {
	row, err := scanEventRow(s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM scheduled_events WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("event %s", id)
		}
		return nil, errors.WrapStorage(err, "failed to get event %s", id)
	}
	return DecodeEvent(row)
}

// SetEnabled persists the enabled flag. Unknown ids return ErrNotFound.
func (s *Store) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE scheduled_events SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return errors.WrapStorage(err, "failed to set enabled for %s", id)
	}
	return requireOneRow(res, id)
}

// UpdateLastRun records the instant of the last execution.
func (s *Store) UpdateLastRun(ctx context.Context, id string, t time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE scheduled_events SET last_run = ? WHERE id = ?`, formatTimestamp(t), id)
	if err != nil {
		return errors.WrapStorage(err, "failed to update last_run for %s", id)
	}
	return requireOneRow(res, id)
}

// DeleteEvent removes an event row. Its execution logs are kept.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_events WHERE id = ?`, id)
	if err != nil {
		return errors.WrapStorage(err, "failed to delete event %s", id)
	}
	return requireOneRow(res, id)
}

// SanitizeReport lists what SanitizeInvalidDays changed.
type SanitizeReport struct {
	Scanned   int      `json:"scanned"`
	Rewritten []string `json:"rewritten"` // days trimmed to the valid subset
	Disabled  []string `json:"disabled"`  // no valid days left, unparsable days, or bad schedule_time
}

// Changed reports whether the pass modified any row.
func (r SanitizeReport) Changed() bool {
	return len(r.Rewritten) > 0 || len(r.Disabled) > 0
}

// SanitizeInvalidDays repairs rows whose days hold tokens outside the
// closed set. Valid tokens are kept; rows left with none, rows whose days
// is not a JSON array, and rows with a malformed schedule_time are
// disabled. Runs in one transaction.
func (s *Store) SanitizeInvalidDays(ctx context.Context) (SanitizeReport, error) {
	var report SanitizeReport

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return report, errors.WrapStorage(err, "failed to begin sanitize")
	}
	defer tx.Rollback()

	type fix struct {
		id      string
		days    *string
		disable bool
	}
	var fixes []fix

	rows, err := tx.QueryContext(ctx, `SELECT id, days, schedule_time, enabled FROM scheduled_events ORDER BY id`)
	if err != nil {
		return report, errors.WrapStorage(err, "failed to scan events for sanitize")
	}
	for rows.Next() {
		var id, rawDays, scheduleTime string
		var enabled bool
		if err := rows.Scan(&id, &rawDays, &scheduleTime, &enabled); err != nil {
			rows.Close()
			return report, errors.WrapStorage(err, "failed to scan event for sanitize")
		}
		report.Scanned++

		f := fix{id: id}
		days, err := DecodeDays(rawDays)
		if err != nil {
			f.disable = true
		} else {
			valid := make([]string, 0, len(days))
			for _, tok := range days {
				if IsValidDayToken(tok) {
					valid = append(valid, normalizeToken(tok))
				}
			}
			if len(valid) != len(days) {
				encoded := EncodeDays(valid)
				f.days = &encoded
			}
			if len(valid) == 0 {
				f.disable = true
			}
		}
		if _, _, err := ParseClock(scheduleTime); err != nil {
			f.disable = true
		}
		if !enabled {
			// Already out of the scheduling set; only rewrite days
			f.disable = false
		}
		if f.days != nil || f.disable {
			fixes = append(fixes, f)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return report, errors.WrapStorage(err, "failed to iterate events for sanitize")
	}
	rows.Close()

	for _, f := range fixes {
		if f.days != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE scheduled_events SET days = ? WHERE id = ?`, *f.days, f.id); err != nil {
				return report, errors.WrapStorage(err, "failed to rewrite days for %s", f.id)
			}
			report.Rewritten = append(report.Rewritten, f.id)
		}
		if f.disable {
			if _, err := tx.ExecContext(ctx, `UPDATE scheduled_events SET enabled = 0 WHERE id = ?`, f.id); err != nil {
				return report, errors.WrapStorage(err, "failed to disable %s", f.id)
			}
			report.Disabled = append(report.Disabled, f.id)
		}
	}

	if err := tx.Commit(); err != nil {
		return report, errors.WrapStorage(err, "failed to commit sanitize")
	}

	if report.Changed() {
		s.logger.Warnw("Sanitized scheduled events",
			"rewritten", report.Rewritten,
			"disabled", report.Disabled,
		)
	}
	return report, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEventRow(r rowScanner) (EventRow, error) {
	var row EventRow
	err := r.Scan(
		&row.ID,
		&row.Name,
		&row.Target,
		&row.Payload,
		&row.ScheduleTime,
		&row.Days,
		&row.Enabled,
		&row.CreatedBy,
		&row.CreatedAt,
		&row.LastRun,
	)
	return row, err
}

func requireOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WrapStorage(err, "failed to read rows affected for %s", id)
	}
	if n == 0 {
		return errors.NewNotFoundError("event %s", id)
	}
	return nil
}

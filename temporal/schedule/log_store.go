package schedule

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/tempo/errors"
)

// LogStore appends and queries execution_logs
type LogStore struct {
	db *sql.DB
}

// NewLogStore creates a new execution log store
func NewLogStore(db *sql.DB) *LogStore {
	return &LogStore{db: db}
}

// AppendLog records one execution attempt. On success resultOrError is the
// collaborator output; on failure it is the error message.
func (s *LogStore) AppendLog(ctx context.Context, eventID string, executedAt time.Time, success bool, resultOrError string) (*ExecutionLog, error) {
	log := &ExecutionLog{
		EventID:    eventID,
		ExecutedAt: executedAt.UTC().Truncate(time.Second),
		Success:    success,
	}
	var result, errText interface{}
	if success {
		log.Result = resultOrError
		result = resultOrError
	} else {
		log.Error = resultOrError
		errText = resultOrError
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_logs (event_id, executed_at, success, result, error)
		VALUES (?, ?, ?, ?, ?)`,
		eventID, formatTimestamp(executedAt), success, result, errText,
	)
	if err != nil {
		return nil, errors.WrapStorage(err, "failed to append execution log for %s", eventID)
	}
	if id, err := res.LastInsertId(); err == nil {
		log.ID = id
	}
	return log, nil
}

// QueryLogsSince returns logs executed at or after cutoff, newest first,
// joined with their event. Logs whose event is gone report
// UnknownEventName / UnknownEventTarget.
func (s *LogStore) QueryLogsSince(ctx context.Context, cutoff time.Time) ([]ExecutionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.event_id, l.executed_at, l.success, l.result, l.error,
		       COALESCE(e.name, ?), COALESCE(e.target, ?)
		FROM execution_logs l
		LEFT JOIN scheduled_events e ON e.id = l.event_id
		WHERE l.executed_at >= ?
		ORDER BY l.executed_at DESC, l.id DESC`,
		UnknownEventName, UnknownEventTarget, formatTimestamp(cutoff),
	)
	if err != nil {
		return nil, errors.WrapStorage(err, "failed to query execution logs")
	}
	defer rows.Close()

	var records []ExecutionRecord
	for rows.Next() {
		var rec ExecutionRecord
		if err := scanLog(rows, &rec.ExecutionLog, &rec.EventName, &rec.EventTarget); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStorage(err, "failed to iterate execution logs")
	}
	return records, nil
}

// ListLogsForEvent returns the newest limit logs of one event.
func (s *LogStore) ListLogsForEvent(ctx context.Context, eventID string, limit int) ([]ExecutionLog, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, executed_at, success, result, error
		FROM execution_logs
		WHERE event_id = ?
		ORDER BY executed_at DESC, id DESC
		LIMIT ?`,
		eventID, limit,
	)
	if err != nil {
		return nil, errors.WrapStorage(err, "failed to list logs for %s", eventID)
	}
	defer rows.Close()

	var logs []ExecutionLog
	for rows.Next() {
		var l ExecutionLog
		if err := scanLog(rows, &l); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStorage(err, "failed to iterate logs for %s", eventID)
	}
	return logs, nil
}

func scanLog(rows *sql.Rows, l *ExecutionLog, extra ...interface{}) error {
	var executedAt string
	var result, errText sql.NullString
	dest := append([]interface{}{&l.ID, &l.EventID, &executedAt, &l.Success, &result, &errText}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return errors.WrapStorage(err, "failed to scan execution log")
	}
	t, err := parseTimestamp(executedAt)
	if err != nil {
		return errors.WrapStorage(err, "execution log %d has bad executed_at", l.ID)
	}
	l.ExecutedAt = t
	l.Result = result.String
	l.Error = errText.String
	return nil
}

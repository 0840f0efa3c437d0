package schedule

import "time"

// ExecutionLog is one append-only record of an attempted execution.
// EventID is a plain reference; logs survive deletion of their event.
type ExecutionLog struct {
	ID         int64     `json:"id"`
	EventID    string    `json:"event_id"`
	ExecutedAt time.Time `json:"executed_at"`
	Success    bool      `json:"success"`
	Result     string    `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Unknown event metadata used when a log outlives its event row.
const (
	UnknownEventName   = "Unknown"
	UnknownEventTarget = "unknown"
)

// ExecutionRecord is an ExecutionLog joined with its event's name and target.
type ExecutionRecord struct {
	ExecutionLog
	EventName   string `json:"event_name"`
	EventTarget string `json:"event_target"`
}

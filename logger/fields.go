package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across tempo.
const (
	// Identity
	FieldEventID = "event_id"
	FieldLogID   = "log_id"
	FieldTarget  = "target"
	FieldPlanDay = "plan_date"

	// Components
	FieldComponent = "component"
	FieldSymbol    = "symbol"

	// Operations
	FieldOperation = "operation"
	FieldTrigger   = "trigger"
	FieldMode      = "mode"

	// Timing
	FieldDurationMS   = "duration_ms"
	FieldScheduleTime = "schedule_time"
	FieldTimezone     = "timezone"

	// Errors and status
	FieldError  = "error"
	FieldStatus = "status"
	FieldCount  = "count"
	FieldPath   = "path"
)

type contextKey string

const (
	eventIDKey   contextKey = "logger_event_id"
	componentKey contextKey = "logger_component"
)

// WithEventID adds an event ID to the context for logging
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, eventIDKey, eventID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}
	if id, ok := ctx.Value(eventIDKey).(string); ok && id != "" {
		fields = append(fields, FieldEventID, id)
	}
	if c, ok := ctx.Value(componentKey).(string); ok && c != "" {
		fields = append(fields, FieldComponent, c)
	}
	return fields
}

// LoggerFromContext returns a logger carrying the event_id/component found in ctx.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return Logger
	}
	return Logger.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
//
//	type Coordinator struct {
//	    logger *zap.SugaredLogger
//	}
//
//	c := &Coordinator{logger: logger.ComponentLogger("temporal.coordinator")}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// Package errors provides error handling for tempo.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Marks, so a failure class survives any amount of wrapping
//
// Usage:
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Classify a storage failure
//	return errors.WrapStorage(err, "failed to append execution log")
//
//	// Check errors
//	if errors.IsStorageError(err) {
//	    // fall back to cached state
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack returns the reportable stack trace attached to err, if any.
var GetStack = crdb.GetReportableStackTrace

// Common sentinel errors for use across tempo.
// Use these with errors.Is() for type-safe error checking.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrServiceUnavailable marks a collaborator that is down or unreachable
	ErrServiceUnavailable = New("service unavailable")

	// ErrStorage marks I/O failures against the event store
	ErrStorage = New("storage error")

	// ErrValidation marks malformed schedule data (days, schedule_time)
	ErrValidation = New("validation error")

	// ErrInvocation marks failures of the external collaborator call
	ErrInvocation = New("invocation error")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
// Also accepts plain errors whose message ends in "not found".
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrNotFound) {
		return true
	}
	errMsg := err.Error()
	return len(errMsg) >= 9 && (errMsg == "not found" ||
		errMsg[len(errMsg)-9:] == "not found" ||
		len(errMsg) > 10 && errMsg[:10] == "not found:")
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// IsServiceUnavailableError checks if the collaborator could not be reached
func IsServiceUnavailableError(err error) bool {
	return err != nil && Is(err, ErrServiceUnavailable)
}

// IsStorageError checks if an error was marked as a storage failure
func IsStorageError(err error) bool {
	return err != nil && Is(err, ErrStorage)
}

// IsValidationError checks if an error is or wraps a schedule validation failure
func IsValidationError(err error) bool {
	return err != nil && Is(err, ErrValidation)
}

// IsInvocationError checks if an error is or wraps a collaborator failure
func IsInvocationError(err error) bool {
	return err != nil && Is(err, ErrInvocation)
}

// WrapStorage wraps err with a formatted message and marks it as a storage failure.
// Returns nil when err is nil.
func WrapStorage(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Mark(Wrapf(err, format, args...), ErrStorage)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

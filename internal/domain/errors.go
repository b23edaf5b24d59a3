package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors, matched with errors.Is.
var (
	ErrValidation             = errors.New("validation failed")
	ErrConflict               = errors.New("conflict")
	ErrNotFound               = errors.New("not found")
	ErrInvalidState           = errors.New("invalid state transition")
	ErrStaleSuggestion        = errors.New("stale suggestion")
	ErrDependencyTimeout      = errors.New("dependency timeout")
	ErrPartialSuggestion      = errors.New("partial suggestion failure")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// ValidationError reports malformed input rejected before any state change.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError reports a collision with existing state, such as an
// overlapping leave request.
type ConflictError struct {
	Entity     string
	ID         string
	ExistingID string
	Message    string
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%s conflict", e.Entity)
	if e.ID != "" {
		msg += " for " + e.ID
	}
	if e.ExistingID != "" {
		msg += " (existing " + e.ExistingID + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidStateError carries the current status so callers can report it.
type InvalidStateError struct {
	Entity  string
	ID      string
	Current string
	Action  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s: current status is %s", e.Action, e.Entity, e.ID, e.Current)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// StaleSuggestionError is returned when a suggested pair is no longer
// available at acceptance time. It is also a conflict-class error.
type StaleSuggestionError struct {
	ConflictID   string
	SuggestionID string
	DriverID     string
	VehicleID    string
	Reason       string
}

func (e *StaleSuggestionError) Error() string {
	return fmt.Sprintf("suggestion %s for conflict %s is stale (driver %s, vehicle %s): %s; pick another candidate",
		e.SuggestionID, e.ConflictID, e.DriverID, e.VehicleID, e.Reason)
}

func (e *StaleSuggestionError) Unwrap() []error { return []error{ErrStaleSuggestion, ErrConflict} }

// DependencyTimeoutError reports an unresponsive external collaborator.
type DependencyTimeoutError struct {
	Dependency string
	Timeout    time.Duration
	Err        error
}

func (e *DependencyTimeoutError) Error() string {
	msg := fmt.Sprintf("%s did not respond within %s", e.Dependency, e.Timeout)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DependencyTimeoutError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDependencyTimeout}
	}
	return []error{ErrDependencyTimeout, e.Err}
}

// ConflictFailure is one conflict whose candidates could not be computed.
type ConflictFailure struct {
	ConflictID string
	TripID     string
	Err        error
}

// PartialSuggestionFailure lists per-conflict failures of one generation run.
// Suggestions for the remaining conflicts were persisted.
type PartialSuggestionFailure struct {
	LeaveRequestID string
	Succeeded      int
	Failures       []ConflictFailure
}

func (e *PartialSuggestionFailure) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("conflict %s (trip %s): %v", f.ConflictID, f.TripID, f.Err))
	}
	return fmt.Sprintf("suggestions for leave %s: %d succeeded, %d failed: %s",
		e.LeaveRequestID, e.Succeeded, len(e.Failures), strings.Join(parts, "; "))
}

func (e *PartialSuggestionFailure) Unwrap() []error {
	errs := []error{ErrPartialSuggestion}
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDependencyTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the caller can fix the request and retry.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrStaleSuggestion)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

/*
errors.go - Centralized error types for the duty engine

PURPOSE:
  All engine error types in one place for consistency and discoverability.
  Outer layers (HTTP, roster management) match on these with errors.Is and
  map them to outcome codes; no engine failure is fatal to the process.

ERROR CATEGORIES:
  1. Session errors - clock-on/clock-off precondition violations
  2. Data-integrity errors - stored state that cannot be interpreted
  3. Repository errors - lookup failures and write conflicts
*/
package duty

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDailyCapReached is returned when a user tries to clock on after
	// already completing the daily payable-hours cap. No mutation occurs.
	ErrDailyCapReached = errors.New("daily cap reached")

	// ErrAlreadyOnDuty is returned by the admin force-on path when an open
	// shift dated today already exists.
	ErrAlreadyOnDuty = errors.New("already on duty")

	// ErrNoActiveShift is returned by clock-off and force-off when no shift
	// dated today is open.
	ErrNoActiveShift = errors.New("no active shift")

	// ErrUserNotFound is returned when a referenced user id or username is
	// absent from the repository.
	ErrUserNotFound = errors.New("user not found")

	// ErrMalformedOnTime is returned when a stored on-time stamp fails to
	// parse back into an instant. This is a data-integrity error: the close
	// is aborted without mutation and the caller must report it, never
	// swallow it.
	ErrMalformedOnTime = errors.New("malformed on-time stamp")

	// ErrConcurrentModification is returned when an optimistic-version check
	// detects that the user record changed underneath a read-modify-write.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DailyCapError reports how much of the cap a user has already consumed.
type DailyCapError struct {
	UserID    string
	Day       DayKey
	Cap       decimal.Decimal
	Completed decimal.Decimal
}

func (e *DailyCapError) Error() string {
	return fmt.Sprintf("daily cap reached: %s completed %s of %s hours on %s",
		e.UserID, e.Completed, e.Cap, e.Day)
}

func (e *DailyCapError) Unwrap() error { return ErrDailyCapReached }

// MalformedOnTimeError identifies the shift whose stamp could not be parsed.
type MalformedOnTimeError struct {
	UserID string
	Date   DayKey
	Stamp  TimeStamp
	Cause  error
}

func (e *MalformedOnTimeError) Error() string {
	return fmt.Sprintf("malformed on-time stamp %q for %s on %s: %v",
		e.Stamp, e.UserID, e.Date, e.Cause)
}

func (e *MalformedOnTimeError) Unwrap() error { return ErrMalformedOnTime }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the operation might succeed when replayed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error reflects a precondition the
// caller violated rather than a system fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDailyCapReached) ||
		errors.Is(err, ErrAlreadyOnDuty) ||
		errors.Is(err, ErrNoActiveShift)
}

// IsNotFound returns true if the error indicates a missing user.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

/*
session.go - The clock-on/clock-off state machine

PURPOSE:
  Drives a user between Off and On duty for the current civil day:

    Off -> On   clock on: allowed while completed hours < daily cap;
                creates an open shift dated today
    On  -> Off  clock off: accrues the open shift via the calculator and
                folds the result into the aggregates

  Admin variants bend the preconditions: force-on bypasses the cap (but not
  the one-open-shift rule), force-off mirrors clock-off, and reset-day
  deletes a day's records and recomputes the career total exactly.

ORDERING:
  Every entry point reconciles the user's hanging shifts FIRST, before
  evaluating today's state. A shift left open yesterday therefore never
  reads as "on duty today"; it is force-closed by the reconciler and the
  user proceeds from Off.

CONCURRENCY:
  Each operation is a read-modify-write through the repository's optimistic
  versioning, replayed on conflict. No locks are held across operations.
*/
package duty

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// SessionManager toggles users on and off duty.
type SessionManager struct {
	repo       Repository
	clock      Clock
	reconciler *Reconciler
}

func NewSessionManager(repo Repository, clock Clock) *SessionManager {
	return &SessionManager{
		repo:       repo,
		clock:      clock,
		reconciler: NewReconciler(repo, clock),
	}
}

// Reconciler exposes the manager's reconciler for schedulers and admin
// sweeps so that inline and background reconciliation share one code path.
func (m *SessionManager) Reconciler() *Reconciler { return m.reconciler }

// =============================================================================
// TOGGLE (user-facing clock on / clock off)
// =============================================================================

// ToggleAction reports which transition a toggle performed.
type ToggleAction string

const (
	ActionClockOn  ToggleAction = "clock_on"
	ActionClockOff ToggleAction = "clock_off"
)

// ToggleResult describes the transition and the shift it touched.
type ToggleResult struct {
	Action ToggleAction
	Shift  ShiftRecord
	User   *User
}

// Toggle clocks the user on if they are off duty today, and off if they are
// on. Fails with ErrDailyCapReached when clocking on past the cap, and with
// ErrMalformedOnTime when a stored stamp cannot be parsed (the close is
// aborted without mutation).
func (m *SessionManager) Toggle(ctx context.Context, userID string) (*ToggleResult, error) {
	var result ToggleResult

	u, err := withUser(ctx, m.repo, userID, func(u *User) (bool, error) {
		if _, err := m.sweep(u); err != nil {
			return false, err
		}

		today := m.clock.Today()
		if open := u.OpenShift(today); open != nil {
			if err := m.closeShift(u, open, ""); err != nil {
				return false, err
			}
			result = ToggleResult{Action: ActionClockOff, Shift: *open}
			return true, nil
		}

		shift, err := m.openShift(u, false)
		if err != nil {
			return false, err
		}
		result = ToggleResult{Action: ActionClockOn, Shift: *shift}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	result.User = u
	return &result, nil
}

// =============================================================================
// ADMIN VARIANTS
// =============================================================================

// ForceOn opens a shift for the user regardless of the daily cap. Fails
// with ErrAlreadyOnDuty if a shift dated today is already open.
func (m *SessionManager) ForceOn(ctx context.Context, userID string) (*ShiftRecord, error) {
	var opened ShiftRecord

	_, err := withUser(ctx, m.repo, userID, func(u *User) (bool, error) {
		if _, err := m.sweep(u); err != nil {
			return false, err
		}

		if u.OpenShift(m.clock.Today()) != nil {
			return false, ErrAlreadyOnDuty
		}

		shift, err := m.openShift(u, true)
		if err != nil {
			return false, err
		}
		opened = *shift
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &opened, nil
}

// ForceOff closes the user's open shift for today on their behalf. Fails
// with ErrNoActiveShift if none is open.
func (m *SessionManager) ForceOff(ctx context.Context, userID string) (*ShiftRecord, error) {
	var closed ShiftRecord

	_, err := withUser(ctx, m.repo, userID, func(u *User) (bool, error) {
		if _, err := m.sweep(u); err != nil {
			return false, err
		}

		open := u.OpenShift(m.clock.Today())
		if open == nil {
			return false, ErrNoActiveShift
		}

		if err := m.closeShift(u, open, StatusAdminSuffix); err != nil {
			return false, err
		}
		closed = *open
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &closed, nil
}

// ResetDay deletes all of the user's shift records for one named day and
// recomputes the career total as the exact sum over the remaining records.
// Returns the number of records removed.
func (m *SessionManager) ResetDay(ctx context.Context, userID string, day DayKey) (int, error) {
	removed := 0

	_, err := withUser(ctx, m.repo, userID, func(u *User) (bool, error) {
		kept := u.Attendance[:0]
		for _, s := range u.Attendance {
			if s.Date != day {
				kept = append(kept, s)
			}
		}
		removed = len(u.Attendance) - len(kept)
		if removed == 0 {
			return false, nil
		}

		u.Attendance = kept
		RecomputeCareerTotal(u)
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ResetUser clears the user's entire payroll state: attendance, monthly
// history, and career total.
func (m *SessionManager) ResetUser(ctx context.Context, userID string) error {
	_, err := withUser(ctx, m.repo, userID, func(u *User) (bool, error) {
		u.Attendance = nil
		u.MonthlyHistory = nil
		u.CareerTotal = decimal.Zero
		return true, nil
	})
	return err
}

// ResetAll clears payroll state for every user on the roster.
func (m *SessionManager) ResetAll(ctx context.Context) error {
	users, err := m.repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := m.ResetUser(ctx, u.ID); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SUMMARY (read path, still reconciles first)
// =============================================================================

// DaySummary is the user's attendance standing for the current day.
type DaySummary struct {
	Today          DayKey
	OnDuty         bool
	CompletedHours decimal.Decimal
	RemainingHours decimal.Decimal
	Month          MonthKey
	MonthlyHours   decimal.Decimal
	MonthlySalary  decimal.Decimal
	CanClockOn     bool
}

// Summary reconciles the user, then reports today's standing.
func (m *SessionManager) Summary(ctx context.Context, userID string) (*User, *DaySummary, error) {
	u, err := withUser(ctx, m.repo, userID, func(u *User) (bool, error) {
		n, err := m.sweep(u)
		if err != nil {
			return false, err
		}
		return n > 0, nil
	})
	if err != nil {
		return nil, nil, err
	}

	today := m.clock.Today()
	month := MonthKeyOf(m.clock.Now())

	completed := u.CompletedHours(today)
	remaining := DailyCap.Sub(completed)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	summary := &DaySummary{
		Today:          today,
		OnDuty:         u.OpenShift(today) != nil,
		CompletedHours: completed,
		RemainingHours: remaining,
		Month:          month,
	}
	summary.CanClockOn = !summary.OnDuty && remaining.IsPositive()

	if entry := u.MonthEntry(month); entry != nil {
		summary.MonthlyHours = entry.Hours
		summary.MonthlySalary = entry.Salary
	}
	return u, summary, nil
}

// =============================================================================
// INTERNAL TRANSITIONS
// =============================================================================

func (m *SessionManager) sweep(u *User) (int, error) {
	return m.reconciler.SweepUser(u)
}

func (m *SessionManager) openShift(u *User, admin bool) (*ShiftRecord, error) {
	today := m.clock.Today()

	if !admin {
		completed := u.CompletedHours(today)
		if !completed.LessThan(DailyCap) {
			return nil, &DailyCapError{
				UserID:    u.ID,
				Day:       today,
				Cap:       DailyCap,
				Completed: completed,
			}
		}
	}

	status := StatusOnDuty
	if admin {
		status += StatusAdminSuffix
	}

	u.Attendance = append(u.Attendance, ShiftRecord{
		Date:   today,
		State:  ShiftOpen,
		OnTime: StampOf(m.clock.Now()),
		Status: status,
	})
	return &u.Attendance[len(u.Attendance)-1], nil
}

func (m *SessionManager) closeShift(u *User, open *ShiftRecord, statusSuffix string) error {
	now := m.clock.Now()

	openAt, err := open.OnTime.Instant(open.Date, m.clock.Location())
	if err != nil {
		return &MalformedOnTimeError{UserID: u.ID, Date: open.Date, Stamp: open.OnTime, Cause: err}
	}

	acc := Accrue(openAt, now, u.SalaryRate, u.CompletedHours(open.Date))
	acc.Status += statusSuffix
	open.Close(now, acc)

	if acc.Paid {
		FoldClosedShift(u, MonthKeyOf(now), acc)
	}
	return nil
}

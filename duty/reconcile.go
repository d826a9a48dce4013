/*
reconcile.go - Force-closing of shifts abandoned across midnight

PURPOSE:
  A shift left open when its day ends is "hanging": the user forgot to
  clock off. The reconciler closes such shifts with a synthetic close
  instant at the midnight boundary ending the shift's day, applying the
  normal accrual rules capped at the full daily maximum.

WHEN IT RUNS:
  - Inline: the session manager sweeps a user before evaluating today's
    state, so a hanging shift never masquerades as "on duty today".
  - Background: a scheduler sweeps the whole roster on an interval.

GRACE WINDOW:
  A hanging shift is only closed once the wall clock is at least 5 minutes
  past the midnight that ended its day. Within the window the shift is left
  alone (the user may still be clocking off around midnight).

IDEMPOTENCE:
  Closing flips the shift's state tag, so a second sweep skips it; running
  the reconciler twice never double-accrues.
*/
package duty

import (
	"context"
	"errors"
	"time"
)

// ReconcileGrace is how far past midnight the clock must be before a
// hanging shift is force-closed.
const ReconcileGrace = 5 * time.Minute

// Reconciler force-closes hanging shifts.
type Reconciler struct {
	repo  Repository
	clock Clock
}

func NewReconciler(repo Repository, clock Clock) *Reconciler {
	return &Reconciler{repo: repo, clock: clock}
}

// SweepUser force-closes every eligible hanging shift on the user, in
// memory. Returns the number of shifts closed. A malformed on-time stamp
// aborts the sweep with ErrMalformedOnTime before any mutation of that
// shift.
func (r *Reconciler) SweepUser(u *User) (int, error) {
	today := r.clock.Today()
	now := r.clock.Now()
	loc := r.clock.Location()

	closed := 0
	for i := range u.Attendance {
		s := &u.Attendance[i]
		if !s.IsOpen() || s.Date == today {
			continue
		}

		boundary, err := s.Date.NextMidnight(loc)
		if err != nil {
			return closed, &MalformedOnTimeError{UserID: u.ID, Date: s.Date, Stamp: s.OnTime, Cause: err}
		}
		if now.Before(boundary.Add(ReconcileGrace)) {
			continue
		}

		openAt, err := s.OnTime.Instant(s.Date, loc)
		if err != nil {
			return closed, &MalformedOnTimeError{UserID: u.ID, Date: s.Date, Stamp: s.OnTime, Cause: err}
		}

		acc := AccrueForced(openAt, boundary, u.SalaryRate)
		s.Close(boundary, acc)

		if acc.Paid {
			// The boundary is the first instant of the next day, but the
			// hours belong to the day the shift was worked; the month key
			// comes from the shift's own date.
			month, merr := s.Date.Month()
			if merr != nil {
				month = MonthKeyOf(boundary)
			}
			FoldClosedShift(u, month, acc)
		}
		closed++
	}
	return closed, nil
}

// SweepAll sweeps every user on the roster through the repository. Per-user
// failures do not stop the sweep; they are joined into the returned error.
func (r *Reconciler) SweepAll(ctx context.Context) (int, error) {
	users, err := r.repo.ListUsers(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	var errs []error
	for _, listed := range users {
		closed := 0
		_, err := withUser(ctx, r.repo, listed.ID, func(u *User) (bool, error) {
			n, serr := r.SweepUser(u)
			closed = n
			if serr != nil {
				return false, serr
			}
			return n > 0, nil
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += closed
	}
	return total, errors.Join(errs...)
}

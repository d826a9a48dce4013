/*
accrual.go - Pure shift accrual rules

PURPOSE:
  Converts a clock-on/clock-off pair into payable hours and salary. These
  are pure functions: they know nothing about users, persistence, or HTTP.

THE RULES:
  1. Minimum duration: a shift under 1 hour is recorded but unpaid. This is
     a minimum-duration-to-be-paid rule, not a floor on payable hours.
  2. Daily cap: at most 4.0 payable hours per user per civil day. The
     payable portion of a shift is min(elapsed, cap - completedToday).
  3. Clamping: negative elapsed time (clock skew, misparsed stamps) is
     clamped to zero, never rejected.
  4. Rounding: hours are rounded to 2 decimals first, then salary is
     computed as round2(hours x rate). Totals accumulate these rounded
     figures step by step.

SEE ALSO:
  - session.go: Applies Accrue on user-initiated clock-offs
  - reconcile.go: Applies AccrueForced on hanging-shift closes
*/
package duty

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONSTANTS
// =============================================================================

var (
	// DailyCap is the maximum payable hours credited per user per day.
	DailyCap = decimal.NewFromInt(4)

	// MinimumPaidHours is the duration a shift must reach to be paid at all.
	MinimumPaidHours = decimal.NewFromInt(1)
)

// =============================================================================
// ACCRUAL RESULT
// =============================================================================

// Accrual is the outcome of closing a shift.
type Accrual struct {
	Elapsed decimal.Decimal // raw elapsed hours, clamped non-negative (not stored)
	Hours   decimal.Decimal // payable hours, rounded to 2 decimals
	Salary  decimal.Decimal // round2(Hours x rate)
	Status  string
	Paid    bool // false only for below-minimum shifts; aggregates are skipped
}

// =============================================================================
// ACCRUAL CALCULATOR
// =============================================================================

// ElapsedHours computes the non-negative elapsed hours between two instants.
func ElapsedHours(openAt, closeAt time.Time) decimal.Decimal {
	elapsed := decimal.NewFromFloat(closeAt.Sub(openAt).Hours())
	if elapsed.IsNegative() {
		return decimal.Zero
	}
	return elapsed
}

// Accrue computes the result of a normal (user or admin initiated) close.
// completedToday is the sum of payable hours already completed on the
// shift's day, which determines the remaining cap headroom.
func Accrue(openAt, closeAt time.Time, rate, completedToday decimal.Decimal) Accrual {
	elapsed := ElapsedHours(openAt, closeAt)

	if elapsed.LessThan(MinimumPaidHours) {
		return Accrual{
			Elapsed: elapsed,
			Hours:   decimal.Zero,
			Salary:  decimal.Zero,
			Status:  StatusBelowMinimum,
			Paid:    false,
		}
	}

	remaining := DailyCap.Sub(completedToday)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	payable := elapsed
	if remaining.LessThan(payable) {
		payable = remaining
	}

	hours := Round2(payable)
	salary := Round2(hours.Mul(rate))

	// The cap label marks shifts that found no headroom left at all;
	// a partially capped shift still reads as completed.
	status := StatusCompleted
	if !remaining.IsPositive() {
		status = StatusCapReached
	}

	return Accrual{
		Elapsed: elapsed,
		Hours:   hours,
		Salary:  salary,
		Status:  status,
		Paid:    true,
	}
}

// AccrueForced computes the result of a reconciler close. The synthetic
// close instant is the midnight boundary after the shift's day, and the
// shift is capped to the full daily maximum regardless of other bookkeeping:
// by construction it is the only shift considered for that already-elapsed
// day.
func AccrueForced(openAt, boundary time.Time, rate decimal.Decimal) Accrual {
	elapsed := ElapsedHours(openAt, boundary)

	// The minimum-duration rule applies to forced closes too; only the
	// status label differs.
	if elapsed.LessThan(MinimumPaidHours) {
		return Accrual{
			Elapsed: elapsed,
			Hours:   decimal.Zero,
			Salary:  decimal.Zero,
			Status:  StatusForceClosed,
			Paid:    false,
		}
	}

	payable := elapsed
	if DailyCap.LessThan(payable) {
		payable = DailyCap
	}

	hours := Round2(payable)
	salary := Round2(hours.Mul(rate))

	return Accrual{
		Elapsed: elapsed,
		Hours:   hours,
		Salary:  salary,
		Status:  StatusForceClosed,
		Paid:    true,
	}
}

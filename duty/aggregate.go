/*
aggregate.go - careerTotal and monthly history maintenance

PURPOSE:
  Folds a newly closed shift into the user's lifetime total and monthly
  history. This is the ONLY path by which those aggregates are incremented;
  the admin reset paths are the only places they are recomputed or cleared.

ROUNDING:
  Each add is rounded to 2 decimals immediately (half away from zero).
  Totals therefore depend on closing order and can drift from the exact
  mathematical sum by design; see RecomputeCareerTotal for the one exact
  path.
*/
package duty

import "github.com/shopspring/decimal"

// FoldClosedShift adds a closed shift's hours and salary into the user's
// aggregates. The month entry is keyed by the close instant's month (passed
// by the caller), created lazily, and kept newest-first.
//
// Unpaid (below-minimum) shifts must not be folded; callers gate on
// Accrual.Paid.
func FoldClosedShift(u *User, month MonthKey, acc Accrual) {
	u.CareerTotal = Round2(u.CareerTotal.Add(acc.Salary))

	entry := u.MonthEntry(month)
	if entry == nil {
		u.MonthlyHistory = append([]MonthlyEntry{{
			Month:  month,
			Hours:  decimal.Zero,
			Salary: decimal.Zero,
		}}, u.MonthlyHistory...)
		entry = &u.MonthlyHistory[0]
	}

	entry.Hours = Round2(entry.Hours.Add(acc.Hours))
	entry.Salary = Round2(entry.Salary.Add(acc.Salary))
}

// RecomputeCareerTotal derives the lifetime total as the exact sum of the
// remaining shifts' salary. Used after admin deletions, where incremental
// bookkeeping would drift from the ledger.
func RecomputeCareerTotal(u *User) {
	total := decimal.Zero
	for i := range u.Attendance {
		total = total.Add(u.Attendance[i].Salary)
	}
	u.CareerTotal = total
}

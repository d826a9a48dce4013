package duty_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lssd/dutyclock/duty"
)

func paidAccrual(hours, salary string) duty.Accrual {
	return duty.Accrual{
		Hours:  dec(hours),
		Salary: dec(salary),
		Status: duty.StatusCompleted,
		Paid:   true,
	}
}

func TestFoldClosedShift_CreatesMonthEntryLazily(t *testing.T) {
	// GIVEN: A user with no monthly history
	// WHEN: A closed shift is folded in
	// THEN: The month entry appears with the shift's figures

	u := &duty.User{}
	duty.FoldClosedShift(u, "03/2026", paidAccrual("2.00", "21428.00"))

	require.Len(t, u.MonthlyHistory, 1)
	assert.Equal(t, duty.MonthKey("03/2026"), u.MonthlyHistory[0].Month)
	assert.Equal(t, "2.00", u.MonthlyHistory[0].Hours.StringFixed(2))
	assert.Equal(t, "21428.00", u.MonthlyHistory[0].Salary.StringFixed(2))
	assert.Equal(t, "21428.00", u.CareerTotal.StringFixed(2))
}

func TestFoldClosedShift_NewMonthsPrependNewestFirst(t *testing.T) {
	// GIVEN: A user with a March entry
	// WHEN: An April shift is folded in
	// THEN: April sits at the front; March keeps its figures

	u := &duty.User{}
	duty.FoldClosedShift(u, "03/2026", paidAccrual("2.00", "21428.00"))
	duty.FoldClosedShift(u, "04/2026", paidAccrual("1.00", "10714.00"))

	require.Len(t, u.MonthlyHistory, 2)
	assert.Equal(t, duty.MonthKey("04/2026"), u.MonthlyHistory[0].Month)
	assert.Equal(t, duty.MonthKey("03/2026"), u.MonthlyHistory[1].Month)
}

func TestFoldClosedShift_SameMonthAccumulates(t *testing.T) {
	// GIVEN: An existing March entry
	// WHEN: Two more March shifts are folded in
	// THEN: One entry accumulates all three

	u := &duty.User{}
	for i := 0; i < 3; i++ {
		duty.FoldClosedShift(u, "03/2026", paidAccrual("1.50", "16071.00"))
	}

	require.Len(t, u.MonthlyHistory, 1)
	assert.Equal(t, "4.50", u.MonthlyHistory[0].Hours.StringFixed(2))
	assert.Equal(t, "48213.00", u.MonthlyHistory[0].Salary.StringFixed(2))
	assert.Equal(t, "48213.00", u.CareerTotal.StringFixed(2))
}

func TestRecomputeCareerTotal_ExactSumOverLedger(t *testing.T) {
	// GIVEN: An attendance ledger with known salaries and a stale total
	// WHEN: The career total is recomputed
	// THEN: It equals the exact sum, including zero-salary records

	u := &duty.User{
		CareerTotal: dec("99999"),
		Attendance: []duty.ShiftRecord{
			{State: duty.ShiftClosed, Salary: dec("21428")},
			{State: duty.ShiftClosed, Salary: dec("10714")},
			{State: duty.ShiftClosed, Salary: dec("0")},
		},
	}

	duty.RecomputeCareerTotal(u)
	assert.Equal(t, "32142.00", u.CareerTotal.StringFixed(2))
}

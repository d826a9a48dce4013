package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lssd/dutyclock/duty"
)

func TestFormatPayout_FloorsToThousands(t *testing.T) {
	// GIVEN: Raw salary figures
	// WHEN: Rendered in the payroll display format
	// THEN: Floored to thousands, comma grouped, dollar suffixed

	cases := map[string]string{
		"0":          "0$",
		"999.99":     "0$",
		"1000":       "1,000$",
		"21428.00":   "21,000$",
		"1234567.89": "1,234,000$",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatPayout(duty.MustDecimal(in)), "input %s", in)
	}
}

func TestGroupHistory_BucketsByDayNewestFirst(t *testing.T) {
	// GIVEN: Shifts across two days, including an open one
	// WHEN: The history is grouped
	// THEN: Days come newest first; day totals skip the open shift

	off := duty.TimeStamp("11:00:00 - 10/03")
	u := &duty.User{Attendance: []duty.ShiftRecord{
		{Date: "09/03/2026", State: duty.ShiftClosed, OffTime: &off,
			Hours: duty.MustDecimal("1.50"), Salary: duty.MustDecimal("16071.00")},
		{Date: "10/03/2026", State: duty.ShiftClosed, OffTime: &off,
			Hours: duty.MustDecimal("2.00"), Salary: duty.MustDecimal("21428.00")},
		{Date: "10/03/2026", State: duty.ShiftOpen},
	}}

	days := groupHistory(u)
	require.Len(t, days, 2)

	assert.Equal(t, "10/03/2026", days[0].Date)
	require.Len(t, days[0].Shifts, 2)
	assert.Equal(t, "2.00", days[0].Hours)
	assert.Equal(t, "21428.00", days[0].Salary)

	assert.Equal(t, "09/03/2026", days[1].Date)
	assert.Equal(t, "1.50", days[1].Hours)
}

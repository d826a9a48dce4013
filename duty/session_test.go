package duty_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lssd/dutyclock/duty"
	"github.com/lssd/dutyclock/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestSession(t *testing.T, start time.Time) (*duty.SessionManager, *memory.Store, *duty.ManualClock) {
	t.Helper()
	store := memory.New()
	clock := duty.NewManualClock(start)
	return duty.NewSessionManager(store, clock), store, clock
}

func seedOfficer(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	err := store.CreateUser(context.Background(), &duty.User{
		ID:          id,
		Username:    id,
		Role:        duty.RoleUser,
		DisplayName: "Officer " + id,
		Position:    "Officer",
		SalaryRate:  officerRate,
	})
	require.NoError(t, err)
}

// =============================================================================
// TOGGLE - the user-facing state machine
// =============================================================================

func TestToggle_ShortThenFullShift(t *testing.T) {
	// GIVEN: An officer at 10714/hour
	// WHEN: They work 09:00-09:40, then 10:00-12:00 the same day
	// THEN: The short shift is recorded unpaid; the second accrues 2.00
	//       hours and 21428.00 salary into every aggregate

	ctx := context.Background()
	mgr, store, clock := newTestSession(t, at(9, 0))
	seedOfficer(t, store, "u1")

	res, err := mgr.Toggle(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, duty.ActionClockOn, res.Action)

	clock.Set(at(9, 40))
	res, err = mgr.Toggle(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, duty.ActionClockOff, res.Action)
	assert.True(t, res.Shift.Hours.IsZero())
	assert.Equal(t, duty.StatusBelowMinimum, res.Shift.Status)

	clock.Set(at(10, 0))
	_, err = mgr.Toggle(ctx, "u1")
	require.NoError(t, err)

	clock.Set(at(12, 0))
	res, err = mgr.Toggle(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, "2.00", res.Shift.Hours.StringFixed(2))
	assert.Equal(t, "21428.00", res.Shift.Salary.StringFixed(2))

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "21428.00", u.CareerTotal.StringFixed(2))
	require.Len(t, u.MonthlyHistory, 1)
	assert.Equal(t, duty.MonthKey("03/2026"), u.MonthlyHistory[0].Month)
	assert.Equal(t, "2.00", u.MonthlyHistory[0].Hours.StringFixed(2))
	assert.Equal(t, "21428.00", u.MonthlyHistory[0].Salary.StringFixed(2))
}

func TestToggle_DailyCapAcrossShifts(t *testing.T) {
	// GIVEN: An officer who worked 2h + 2h today (the full cap)
	// WHEN: They try to clock on a third time
	// THEN: The clock-on is rejected with the daily cap error and nothing
	//       is written

	ctx := context.Background()
	mgr, store, clock := newTestSession(t, at(8, 0))
	seedOfficer(t, store, "u1")

	for _, span := range [][2]time.Time{
		{at(8, 0), at(10, 0)},
		{at(10, 30), at(12, 30)},
	} {
		clock.Set(span[0])
		_, err := mgr.Toggle(ctx, "u1")
		require.NoError(t, err)
		clock.Set(span[1])
		_, err = mgr.Toggle(ctx, "u1")
		require.NoError(t, err)
	}

	clock.Set(at(14, 0))
	_, err := mgr.Toggle(ctx, "u1")
	assert.ErrorIs(t, err, duty.ErrDailyCapReached)

	var capErr *duty.DailyCapError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "4", capErr.Completed.String())

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, u.Attendance, 2, "rejected clock-on must not append a shift")
}

func TestToggle_ShiftSpillingOverCapIsTrimmed(t *testing.T) {
	// GIVEN: 3 payable hours already completed today
	// WHEN: A further 2 hour shift is closed
	// THEN: Only 1.00 hour of it is paid; the cap is never exceeded

	ctx := context.Background()
	mgr, store, clock := newTestSession(t, at(8, 0))
	seedOfficer(t, store, "u1")

	_, err := mgr.Toggle(ctx, "u1")
	require.NoError(t, err)
	clock.Set(at(11, 0))
	_, err = mgr.Toggle(ctx, "u1")
	require.NoError(t, err)

	clock.Set(at(13, 0))
	_, err = mgr.Toggle(ctx, "u1")
	require.NoError(t, err)
	clock.Set(at(15, 0))
	res, err := mgr.Toggle(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, "1.00", res.Shift.Hours.StringFixed(2))

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "4", u.CompletedHours(clock.Today()).String())
}

func TestToggle_UnknownUser(t *testing.T) {
	// GIVEN: An empty roster
	// WHEN: An unknown id toggles
	// THEN: ErrUserNotFound

	mgr, _, _ := newTestSession(t, at(9, 0))
	_, err := mgr.Toggle(context.Background(), "ghost")
	assert.ErrorIs(t, err, duty.ErrUserNotFound)
}

func TestToggle_MalformedOnTime_AbortsWithoutMutation(t *testing.T) {
	// GIVEN: An open shift whose stored on-time stamp is garbage
	// WHEN: The user clocks off
	// THEN: The close fails loudly with the malformed-stamp error and the
	//       shift stays open

	ctx := context.Background()
	mgr, store, clock := newTestSession(t, at(9, 0))
	seedOfficer(t, store, "u1")

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	u.Attendance = append(u.Attendance, duty.ShiftRecord{
		Date:   clock.Today(),
		State:  duty.ShiftOpen,
		OnTime: duty.TimeStamp("not a stamp"),
		Status: duty.StatusOnDuty,
	})
	require.NoError(t, store.UpdateUser(ctx, u))

	_, err = mgr.Toggle(ctx, "u1")
	assert.ErrorIs(t, err, duty.ErrMalformedOnTime)

	var stampErr *duty.MalformedOnTimeError
	require.ErrorAs(t, err, &stampErr)
	assert.Equal(t, duty.TimeStamp("not a stamp"), stampErr.Stamp)

	u, err = store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.Attendance[0].IsOpen(), "failed close must not mutate the shift")
}

// =============================================================================
// ADMIN VARIANTS
// =============================================================================

func TestForceOn_BypassesCapButNotOpenShift(t *testing.T) {
	// GIVEN: An officer already at the full daily cap
	// WHEN: An admin forces them on, then forces them on again
	// THEN: The first succeeds despite the cap; the second fails because a
	//       shift is already open

	ctx := context.Background()
	mgr, store, clock := newTestSession(t, at(8, 0))
	seedOfficer(t, store, "u1")

	_, err := mgr.Toggle(ctx, "u1")
	require.NoError(t, err)
	clock.Set(at(12, 0))
	_, err = mgr.Toggle(ctx, "u1")
	require.NoError(t, err)

	shift, err := mgr.ForceOn(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, shift.IsOpen())
	assert.Contains(t, shift.Status, duty.StatusAdminSuffix)

	_, err = mgr.ForceOn(ctx, "u1")
	assert.ErrorIs(t, err, duty.ErrAlreadyOnDuty)
}

func TestForceOff_RequiresOpenShift(t *testing.T) {
	// GIVEN: An officer who is off duty
	// WHEN: An admin forces them off
	// THEN: ErrNoActiveShift

	mgr, store, _ := newTestSession(t, at(9, 0))
	seedOfficer(t, store, "u1")

	_, err := mgr.ForceOff(context.Background(), "u1")
	assert.ErrorIs(t, err, duty.ErrNoActiveShift)
}

func TestForceOff_ClosesWithAdminMark(t *testing.T) {
	// GIVEN: An officer on duty for 2 hours
	// WHEN: An admin forces them off
	// THEN: The shift accrues normally and the status carries the admin mark

	ctx := context.Background()
	mgr, store, clock := newTestSession(t, at(9, 0))
	seedOfficer(t, store, "u1")

	_, err := mgr.Toggle(ctx, "u1")
	require.NoError(t, err)

	clock.Set(at(11, 0))
	shift, err := mgr.ForceOff(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, "2.00", shift.Hours.StringFixed(2))
	assert.Equal(t, duty.StatusCompleted+duty.StatusAdminSuffix, shift.Status)
}

func TestResetDay_RemovesRecordsAndRecomputesExactly(t *testing.T) {
	// GIVEN: Shifts on two different days
	// WHEN: An admin resets the first day
	// THEN: Only that day's records go away and the career total becomes
	//       the exact sum over what remains

	ctx := context.Background()
	mgr, store, clock := newTestSession(t, at(9, 0))
	seedOfficer(t, store, "u1")

	day1 := clock.Today()

	_, err := mgr.Toggle(ctx, "u1")
	require.NoError(t, err)
	clock.Set(at(11, 0))
	_, err = mgr.Toggle(ctx, "u1")
	require.NoError(t, err)

	clock.Set(at(9, 0).AddDate(0, 0, 1))
	_, err = mgr.Toggle(ctx, "u1")
	require.NoError(t, err)
	clock.Advance(3 * time.Hour)
	_, err = mgr.Toggle(ctx, "u1")
	require.NoError(t, err)

	removed, err := mgr.ResetDay(ctx, "u1", day1)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, u.Attendance, 1)
	assert.Equal(t, "32142.00", u.CareerTotal.StringFixed(2)) // 3h x 10714
}

func TestResetDay_UnknownDayIsNoop(t *testing.T) {
	// GIVEN: A user with no records on the named day
	// WHEN: The day is reset
	// THEN: Zero removed, no error

	mgr, store, _ := newTestSession(t, at(9, 0))
	seedOfficer(t, store, "u1")

	removed, err := mgr.ResetDay(context.Background(), "u1", duty.DayKey("01/01/2020"))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestResetUser_ClearsEverything(t *testing.T) {
	// GIVEN: A user with attendance, monthly history, and a career total
	// WHEN: Their payroll state is reset
	// THEN: All three are empty

	ctx := context.Background()
	mgr, store, clock := newTestSession(t, at(9, 0))
	seedOfficer(t, store, "u1")

	_, err := mgr.Toggle(ctx, "u1")
	require.NoError(t, err)
	clock.Set(at(11, 0))
	_, err = mgr.Toggle(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, mgr.ResetUser(ctx, "u1"))

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, u.Attendance)
	assert.Empty(t, u.MonthlyHistory)
	assert.True(t, u.CareerTotal.IsZero())
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestSummary_ReportsStanding(t *testing.T) {
	// GIVEN: An officer with 2 completed hours who is currently off duty
	// WHEN: Their summary is read
	// THEN: Completed/remaining hours and the clock-on gate are correct

	ctx := context.Background()
	mgr, store, clock := newTestSession(t, at(9, 0))
	seedOfficer(t, store, "u1")

	_, err := mgr.Toggle(ctx, "u1")
	require.NoError(t, err)
	clock.Set(at(11, 0))
	_, err = mgr.Toggle(ctx, "u1")
	require.NoError(t, err)

	_, summary, err := mgr.Summary(ctx, "u1")
	require.NoError(t, err)

	assert.False(t, summary.OnDuty)
	assert.Equal(t, "2.00", summary.CompletedHours.StringFixed(2))
	assert.Equal(t, "2.00", summary.RemainingHours.StringFixed(2))
	assert.True(t, summary.CanClockOn)
	assert.Equal(t, "2.00", summary.MonthlyHours.StringFixed(2))
	assert.Equal(t, "21428.00", summary.MonthlySalary.StringFixed(2))
}

func TestSummary_AtCap_CannotClockOn(t *testing.T) {
	// GIVEN: An officer who completed the full cap
	// WHEN: Their summary is read
	// THEN: Remaining is zero and clock-on is gated off

	ctx := context.Background()
	mgr, store, clock := newTestSession(t, at(8, 0))
	seedOfficer(t, store, "u1")

	_, err := mgr.Toggle(ctx, "u1")
	require.NoError(t, err)
	clock.Set(at(12, 0))
	_, err = mgr.Toggle(ctx, "u1")
	require.NoError(t, err)

	_, summary, err := mgr.Summary(ctx, "u1")
	require.NoError(t, err)

	assert.True(t, summary.RemainingHours.IsZero())
	assert.False(t, summary.CanClockOn)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestToggle_ReplaysOnVersionConflict(t *testing.T) {
	// GIVEN: Another writer bumps the user's version between the engine's
	//        read and write
	// WHEN: The user toggles
	// THEN: The read-modify-write replays and still succeeds

	ctx := context.Background()
	store := memory.New()
	clock := duty.NewManualClock(at(9, 0))
	conflicting := &conflictOnce{Store: store}
	mgr := duty.NewSessionManager(conflicting, clock)

	seedOfficer(t, store, "u1")

	res, err := mgr.Toggle(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, duty.ActionClockOn, res.Action)
	assert.True(t, conflicting.fired, "the conflict must actually have happened")
}

// conflictOnce injects one version conflict into the first UpdateUser by
// sneaking in a competing write.
type conflictOnce struct {
	*memory.Store
	fired bool
}

func (c *conflictOnce) UpdateUser(ctx context.Context, u *duty.User) error {
	if !c.fired {
		c.fired = true
		other, err := c.Store.GetUser(ctx, u.ID)
		if err != nil {
			return err
		}
		other.DisplayName = other.DisplayName + " (renamed)"
		if err := c.Store.UpdateUser(ctx, other); err != nil {
			return err
		}
	}
	return c.Store.UpdateUser(ctx, u)
}

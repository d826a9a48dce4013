/*
Package duty provides the shift accrual and payroll-accumulation engine.

PURPOSE:
  This package contains the core domain model and algorithms for a small
  duty-roster timekeeping system: personnel clock on and off duty, each
  closed shift is converted into payable hours and salary, and the results
  are folded into monthly and lifetime aggregates.

KEY CONCEPTS IN THIS FILE (types.go):
  - ShiftRecord: One open-to-close duty interval, with an explicit state tag
  - User: A roster member with an attendance ledger and aggregates
  - DayKey / MonthKey: Civil calendar keys ("DD/MM/YYYY", "MM/YYYY")
  - TimeStamp: Wall-clock stamp stored alongside a shift ("HH:MM:SS - DD/MM")

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for hours and money, never float64
  2. Explicit state: A shift is Open or Closed by tag, not by nil-sniffing
  3. Rounding: Stored values are rounded to 2 decimals at each accumulation
     step (round-half-away-from-zero), matching the payroll rules exactly

SEE ALSO:
  - accrual.go: Pure shift accrual rules (minimum duration, daily cap)
  - session.go: The clock-on/clock-off state machine
  - reconcile.go: Force-closing of shifts abandoned across midnight
  - aggregate.go: careerTotal and monthly history maintenance
*/
package duty

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CALENDAR KEYS
// =============================================================================

// DayKey identifies a civil calendar day in the roster's timezone,
// formatted "DD/MM/YYYY".
type DayKey string

// MonthKey identifies a civil calendar month, formatted "MM/YYYY".
type MonthKey string

const (
	dayKeyLayout   = "02/01/2006"
	monthKeyLayout = "01/2006"
)

// DayKeyOf derives the day key for an instant. The instant must already be
// in the roster's timezone (see Clock).
func DayKeyOf(t time.Time) DayKey {
	return DayKey(t.Format(dayKeyLayout))
}

// MonthKeyOf derives the month key for an instant.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.Format(monthKeyLayout))
}

// StartOfDay returns midnight at the start of the day in the given zone.
func (d DayKey) StartOfDay(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dayKeyLayout, string(d), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", d, err)
	}
	return t, nil
}

// NextMidnight returns midnight at the end of the day, i.e. the first
// instant of the following day. This is the synthetic close instant used
// when force-closing hanging shifts.
func (d DayKey) NextMidnight(loc *time.Location) (time.Time, error) {
	start, err := d.StartOfDay(loc)
	if err != nil {
		return time.Time{}, err
	}
	return start.AddDate(0, 0, 1), nil
}

// Month returns the month key the day belongs to.
func (d DayKey) Month() (MonthKey, error) {
	t, err := time.Parse(dayKeyLayout, string(d))
	if err != nil {
		return "", fmt.Errorf("invalid day key %q: %w", d, err)
	}
	return MonthKeyOf(t), nil
}

// =============================================================================
// TIME STAMP - wall-clock stamp stored on a shift
// =============================================================================

// TimeStamp is the human-readable stamp persisted with a shift,
// "HH:MM:SS - DD/MM". Only the time-of-day part is authoritative; the full
// instant is reconstructed from the shift's DayKey.
type TimeStamp string

// StampOf formats an instant as a TimeStamp.
func StampOf(t time.Time) TimeStamp {
	return TimeStamp(t.Format("15:04:05") + " - " + t.Format("02/01"))
}

// Instant reconstructs the full instant from the stamp's time-of-day and the
// day the shift is dated. Stamps written without seconds are accepted.
// A stamp that cannot be parsed is a data-integrity problem and is surfaced
// as ErrMalformedOnTime by callers.
func (s TimeStamp) Instant(day DayKey, loc *time.Location) (time.Time, error) {
	clock := strings.TrimSpace(strings.SplitN(string(s), " - ", 2)[0])

	var layout string
	switch strings.Count(clock, ":") {
	case 2:
		layout = "15:04:05"
	case 1:
		layout = "15:04"
	default:
		return time.Time{}, fmt.Errorf("unparseable time stamp %q", s)
	}

	tod, err := time.Parse(layout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable time stamp %q: %w", s, err)
	}

	base, err := day.StartOfDay(loc)
	if err != nil {
		return time.Time{}, err
	}
	return base.Add(time.Duration(tod.Hour())*time.Hour +
		time.Duration(tod.Minute())*time.Minute +
		time.Duration(tod.Second())*time.Second), nil
}

// =============================================================================
// SHIFT RECORD
// =============================================================================

// ShiftState tags a shift as open (on duty) or closed.
type ShiftState string

const (
	ShiftOpen   ShiftState = "open"
	ShiftClosed ShiftState = "closed"
)

// Shift status labels. A status is descriptive only; the engine never
// branches on it.
const (
	StatusOnDuty       = "on duty"
	StatusCompleted    = "shift completed"
	StatusCapReached   = "daily cap reached"
	StatusBelowMinimum = "below minimum duration, unpaid"
	StatusForceClosed  = "force-closed by system"
	StatusAdminSuffix  = " (admin)"
)

// ShiftRecord is one open-to-close duty interval.
//
// INVARIANTS:
//   - State == ShiftOpen  <=> OffTime == nil
//   - Hours and Salary are zero until the shift is closed AND meets the
//     minimum-duration rule
//   - A closed shift is never mutated again, except by explicit admin
//     deletion (reset operations)
type ShiftRecord struct {
	Date    DayKey          `json:"date"`
	State   ShiftState      `json:"state"`
	OnTime  TimeStamp       `json:"on_time"`
	OffTime *TimeStamp      `json:"off_time,omitempty"`
	Hours   decimal.Decimal `json:"hours"`
	Salary  decimal.Decimal `json:"salary"`
	Status  string          `json:"status"`
}

// IsOpen reports whether the shift is still on duty.
func (s *ShiftRecord) IsOpen() bool { return s.State == ShiftOpen }

// Close marks the shift closed at the given instant with the accrual result.
func (s *ShiftRecord) Close(at time.Time, acc Accrual) {
	stamp := StampOf(at)
	s.OffTime = &stamp
	s.State = ShiftClosed
	s.Hours = acc.Hours
	s.Salary = acc.Salary
	s.Status = acc.Status
}

// =============================================================================
// MONTHLY HISTORY
// =============================================================================

// MonthlyEntry accumulates payable hours and salary for one calendar month.
// Entries are created lazily on first accrual in a month and only ever
// incremented (outside of admin resets).
type MonthlyEntry struct {
	Month  MonthKey        `json:"month"`
	Hours  decimal.Decimal `json:"hours"`
	Salary decimal.Decimal `json:"salary"`
}

// =============================================================================
// USER
// =============================================================================

// Role separates ordinary roster members from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a roster member together with their attendance ledger and payroll
// aggregates.
//
// INVARIANT: CareerTotal equals the salary of all closed shifts in
// Attendance, accumulated in closing order with a 2-decimal round after each
// add. It is maintained incrementally by the aggregate updater; the admin
// reset-day path is the one place it is recomputed exactly.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
	DisplayName  string `json:"display_name"`
	Position     string `json:"position"`
	Rank         string `json:"rank"`
	Avatar       string `json:"avatar"`

	SalaryRate     decimal.Decimal `json:"salary_rate"` // currency units per payable hour
	CareerTotal    decimal.Decimal `json:"career_total"`
	Attendance     []ShiftRecord   `json:"attendance"`
	MonthlyHistory []MonthlyEntry  `json:"monthly_history"`

	// Version implements optimistic concurrency in the repository.
	// It is storage bookkeeping, not domain state.
	Version int64 `json:"-"`
}

// OpenShift returns the open shift dated the given day, or nil.
// By construction at most one shift per day is open at a time.
func (u *User) OpenShift(day DayKey) *ShiftRecord {
	for i := range u.Attendance {
		s := &u.Attendance[i]
		if s.Date == day && s.IsOpen() {
			return s
		}
	}
	return nil
}

// HangingShift returns an open shift dated some day other than today, or
// nil. Such a shift was abandoned across a day boundary and belongs to the
// reconciler, not the session manager.
func (u *User) HangingShift(today DayKey) *ShiftRecord {
	for i := range u.Attendance {
		s := &u.Attendance[i]
		if s.IsOpen() && s.Date != today {
			return s
		}
	}
	return nil
}

// CompletedHours sums the payable hours of closed shifts dated the given
// day. Shifts below the minimum duration carry zero hours and do not count.
func (u *User) CompletedHours(day DayKey) decimal.Decimal {
	total := decimal.Zero
	for i := range u.Attendance {
		s := &u.Attendance[i]
		if s.Date == day && !s.IsOpen() && s.Hours.IsPositive() {
			total = total.Add(s.Hours)
		}
	}
	return total
}

// MonthEntry locates the monthly history entry for a month, or nil.
func (u *User) MonthEntry(month MonthKey) *MonthlyEntry {
	for i := range u.MonthlyHistory {
		if u.MonthlyHistory[i].Month == month {
			return &u.MonthlyHistory[i]
		}
	}
	return nil
}

// Clone returns a deep copy. Repositories hand out clones so callers can
// mutate freely before saving.
func (u *User) Clone() *User {
	cp := *u
	cp.Attendance = make([]ShiftRecord, len(u.Attendance))
	copy(cp.Attendance, u.Attendance)
	cp.MonthlyHistory = make([]MonthlyEntry, len(u.MonthlyHistory))
	copy(cp.MonthlyHistory, u.MonthlyHistory)
	return &cp
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

// Round2 rounds to 2 decimal places, half away from zero. Every stored
// hours/salary figure goes through this at each accumulation step; totals
// are NOT recomputed from raw values afterwards.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// MustDecimal parses a decimal literal, returning zero on failure.
// For constants and seed data only.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures decoupling the domain model from the API contract.
  Decimals are rendered as fixed two-decimal strings so clients never see
  floating point artifacts; display money additionally gets the payroll
  format (floored to thousands with a trailing dollar sign).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
*/
package api

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lssd/dutyclock/duty"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Position    string `json:"position"`
	Rank        string `json:"rank"`
	Role        string `json:"role,omitempty"`
}

type ChangePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

type SetPositionRequest struct {
	Position string `json:"position"`
	Rank     string `json:"rank"`
}

type ResetDayRequest struct {
	Date string `json:"date"` // "DD/MM/YYYY"
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type LoginResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

type UserDTO struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	Position    string `json:"position"`
	Rank        string `json:"rank"`
	Avatar      string `json:"avatar"`
	SalaryRate  string `json:"salary_rate"`
	CareerTotal string `json:"career_total"`
}

type ShiftDTO struct {
	Date    string `json:"date"`
	State   string `json:"state"`
	OnTime  string `json:"on_time"`
	OffTime string `json:"off_time,omitempty"`
	Hours   string `json:"hours"`
	Salary  string `json:"salary"`
	Status  string `json:"status"`
}

type MonthlyEntryDTO struct {
	Month  string `json:"month"`
	Hours  string `json:"hours"`
	Salary string `json:"salary"`
}

type DaySummaryDTO struct {
	Today          string `json:"today"`
	OnDuty         bool   `json:"on_duty"`
	CompletedHours string `json:"completed_hours"`
	RemainingHours string `json:"remaining_hours"`
	DailyCap       string `json:"daily_cap"`
	Month          string `json:"month"`
	MonthlyHours   string `json:"monthly_hours"`
	MonthlySalary  string `json:"monthly_salary"`
	CanClockOn     bool   `json:"can_clock_on"`
}

type ToggleResponse struct {
	Action  string        `json:"action"`
	Shift   ShiftDTO      `json:"shift"`
	Summary DaySummaryDTO `json:"summary"`
}

type AttendanceResponse struct {
	User           UserDTO           `json:"user"`
	Summary        DaySummaryDTO     `json:"summary"`
	History        []HistoryDayDTO   `json:"history"`
	MonthlyHistory []MonthlyEntryDTO `json:"monthly_history"`
}

// HistoryDayDTO is one calendar day of attendance, newest first.
type HistoryDayDTO struct {
	Date   string     `json:"date"`
	Shifts []ShiftDTO `json:"shifts"`
	Hours  string     `json:"hours"`
	Salary string     `json:"salary"`
}

type HistoryResponse struct {
	History     []HistoryDayDTO `json:"history"`
	UserTotal   string          `json:"user_total"`
	ServerTotal string          `json:"server_total"`
}

// PanelStats is the admin dashboard headcount for today.
type PanelStats struct {
	OnDuty     int `json:"on_duty"`
	OffDuty    int `json:"off_duty"`
	NotStarted int `json:"not_started"`
}

type PanelResponse struct {
	Stats PanelStats `json:"stats"`
	Users []UserDTO  `json:"users"`
}

type MetaResponse struct {
	Positions []string `json:"positions"`
	Ranks     []string `json:"ranks"`
	DailyCap  string   `json:"daily_cap"`
}

type ReconcileResponse struct {
	ShiftsClosed int `json:"shifts_closed"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toUserDTO(u *duty.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Username:    u.Username,
		Role:        string(u.Role),
		DisplayName: u.DisplayName,
		Position:    u.Position,
		Rank:        u.Rank,
		Avatar:      u.Avatar,
		SalaryRate:  u.SalaryRate.StringFixed(2),
		CareerTotal: u.CareerTotal.StringFixed(2),
	}
}

func toShiftDTO(s *duty.ShiftRecord) ShiftDTO {
	dto := ShiftDTO{
		Date:   string(s.Date),
		State:  string(s.State),
		OnTime: string(s.OnTime),
		Hours:  s.Hours.StringFixed(2),
		Salary: s.Salary.StringFixed(2),
		Status: s.Status,
	}
	if s.OffTime != nil {
		dto.OffTime = string(*s.OffTime)
	}
	return dto
}

func toSummaryDTO(s *duty.DaySummary) DaySummaryDTO {
	return DaySummaryDTO{
		Today:          string(s.Today),
		OnDuty:         s.OnDuty,
		CompletedHours: s.CompletedHours.StringFixed(2),
		RemainingHours: s.RemainingHours.StringFixed(2),
		DailyCap:       duty.DailyCap.StringFixed(2),
		Month:          string(s.Month),
		MonthlyHours:   s.MonthlyHours.StringFixed(2),
		MonthlySalary:  s.MonthlySalary.StringFixed(2),
		CanClockOn:     s.CanClockOn,
	}
}

func toMonthlyDTOs(entries []duty.MonthlyEntry) []MonthlyEntryDTO {
	out := make([]MonthlyEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = MonthlyEntryDTO{
			Month:  string(e.Month),
			Hours:  e.Hours.StringFixed(2),
			Salary: e.Salary.StringFixed(2),
		}
	}
	return out
}

// groupHistory buckets a user's attendance by day, newest day first.
func groupHistory(u *duty.User) []HistoryDayDTO {
	byDay := make(map[duty.DayKey][]duty.ShiftRecord)
	for _, s := range u.Attendance {
		byDay[s.Date] = append(byDay[s.Date], s)
	}

	days := make([]duty.DayKey, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool {
		ti, erri := time.Parse("02/01/2006", string(days[i]))
		tj, errj := time.Parse("02/01/2006", string(days[j]))
		if erri != nil || errj != nil {
			return days[i] > days[j]
		}
		return ti.After(tj)
	})

	out := make([]HistoryDayDTO, 0, len(days))
	for _, d := range days {
		shifts := byDay[d]
		hours, salary := decimal.Zero, decimal.Zero
		dtos := make([]ShiftDTO, len(shifts))
		for i := range shifts {
			dtos[i] = toShiftDTO(&shifts[i])
			if !shifts[i].IsOpen() {
				hours = hours.Add(shifts[i].Hours)
				salary = salary.Add(shifts[i].Salary)
			}
		}
		out = append(out, HistoryDayDTO{
			Date:   string(d),
			Shifts: dtos,
			Hours:  hours.StringFixed(2),
			Salary: salary.StringFixed(2),
		})
	}
	return out
}

// =============================================================================
// PAYROLL DISPLAY FORMAT
// =============================================================================

// formatPayout renders a salary figure the way the payroll reports do:
// floored to the nearest thousand, grouped with commas, dollar sign suffix.
func formatPayout(d decimal.Decimal) string {
	floored := d.Div(decimal.NewFromInt(1000)).Floor().Mul(decimal.NewFromInt(1000))
	return groupThousands(floored.StringFixed(0)) + "$"
}

func groupThousands(s string) string {
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}

	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

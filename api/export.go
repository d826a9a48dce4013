/*
export.go - Payroll spreadsheet export

PURPOSE:
  Streams the whole roster's payroll standing as an Excel workbook, one
  row per member: identity, assignment, career totals, and today's duty
  standing. The career salary column uses the payroll display format so
  the sheet matches what gets paid out.
*/
package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/lssd/dutyclock/duty"
)

const payrollSheet = "Payroll"

var payrollHeaders = []string{
	"ID", "Name", "Position", "Rank", "Hourly Rate",
	"Career Hours", "Career Salary", "Today Hours", "Today Salary", "Today Status",
}

// ExportPayroll writes the roster payroll workbook to the response.
func (h *Handler) ExportPayroll(w http.ResponseWriter, r *http.Request) {
	users, err := h.Repo.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users", err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(payrollSheet)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build workbook", err)
		return
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	for col, name := range payrollHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(payrollSheet, cell, name)
	}
	_ = f.SetColWidth(payrollSheet, "A", "A", 36)
	_ = f.SetColWidth(payrollSheet, "B", "D", 22)
	_ = f.SetColWidth(payrollSheet, "E", "I", 14)
	_ = f.SetColWidth(payrollSheet, "J", "J", 28)

	today := h.Clock.Today()
	for row, u := range users {
		hours, salary, status := todayStanding(u, today)

		careerHours := decimal.Zero
		for i := range u.Attendance {
			if !u.Attendance[i].IsOpen() {
				careerHours = careerHours.Add(u.Attendance[i].Hours)
			}
		}

		values := []any{
			u.ID, u.DisplayName, u.Position, u.Rank,
			u.SalaryRate.StringFixed(2),
			careerHours.StringFixed(2),
			formatPayout(u.CareerTotal),
			hours.StringFixed(2),
			salary.StringFixed(2),
			status,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(payrollSheet, cell, v)
		}
	}

	filename := fmt.Sprintf("payroll-%s.xlsx", strings.ReplaceAll(string(today), "/", "-"))

	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := f.Write(w); err != nil {
		h.Log.Error().Err(err).Msg("failed to stream payroll workbook")
	}
}

// todayStanding summarizes a user's duty for one day: summed closed hours
// and salary, plus a coarse status label.
func todayStanding(u *duty.User, day duty.DayKey) (decimal.Decimal, decimal.Decimal, string) {
	hours, salary := decimal.Zero, decimal.Zero
	status := "not started"
	for i := range u.Attendance {
		s := &u.Attendance[i]
		if s.Date != day {
			continue
		}
		if s.IsOpen() {
			status = "on duty"
			continue
		}
		hours = hours.Add(s.Hours)
		salary = salary.Add(s.Salary)
		if status == "not started" {
			status = "off duty"
		}
	}
	return hours, salary, status
}

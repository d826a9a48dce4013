/*
handlers.go - HTTP API handlers for the duty clock

PURPOSE:
  Exposes the timekeeping engine and roster management over REST. Handlers
  parse and validate requests, delegate to domain services, and map domain
  errors to HTTP outcomes.

ENDPOINTS:
  Session:
    POST   /api/login                       Exchange credentials for a token

  Attendance (authenticated):
    POST   /api/attendance/toggle           Clock on / clock off
    GET    /api/attendance                  Today's standing + history
    GET    /api/profile                     Own profile with monthly history
    POST   /api/profile/password            Change own password
    POST   /api/profile/update              Change own display name

  Admin:
    GET    /api/admin/panel                 Roster + today's duty headcount
    POST   /api/admin/users                 Register a roster member
    DELETE /api/admin/users/{id}            Remove a member
    POST   /api/admin/users/{id}/force-on   Open a shift, bypassing the cap
    POST   /api/admin/users/{id}/force-off  Close the open shift
    POST   /api/admin/users/{id}/reset-day  Delete one day's records
    POST   /api/admin/users/{id}/reset-salary  Clear all payroll state
    POST   /api/admin/users/{id}/role       Promote / demote
    POST   /api/admin/users/{id}/position   Reassign position (re-rates pay)
    GET    /api/admin/users/{id}/history    Daily history + totals
    POST   /api/admin/reset-all-salary      Clear payroll state roster-wide
    POST   /api/admin/reconcile             Sweep hanging shifts now
    GET    /api/admin/export                Payroll spreadsheet (xlsx)
    GET    /api/admin/meta                  Positions, ranks, cap

ERROR HANDLING:
  400 invalid input, 401 bad credentials/token, 403 not an admin,
  404 unknown user, 409 precondition violations (cap reached, already on
  duty, no active shift, version conflict), 500 internal faults including
  malformed stored stamps.
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lssd/dutyclock/duty"
	"github.com/lssd/dutyclock/roster"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Sessions *duty.SessionManager
	Roster   *roster.Service
	Repo     duty.Repository
	Clock    duty.Clock
	Auth     *Authenticator
	Log      zerolog.Logger
}

func NewHandler(sessions *duty.SessionManager, rosterSvc *roster.Service,
	repo duty.Repository, clock duty.Clock, auth *Authenticator, log zerolog.Logger) *Handler {
	return &Handler{
		Sessions: sessions,
		Roster:   rosterSvc,
		Repo:     repo,
		Clock:    clock,
		Auth:     auth,
		Log:      log,
	}
}

// =============================================================================
// SESSION
// =============================================================================

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	u, err := h.Roster.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	token, err := h.Auth.IssueToken(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: toUserDTO(u)})
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (h *Handler) ToggleDuty(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())

	result, err := h.Sessions.Toggle(r.Context(), claims.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	_, summary, err := h.Sessions.Summary(r.Context(), claims.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Log.Info().
		Str("user_id", claims.UserID).
		Str("action", string(result.Action)).
		Str("status", result.Shift.Status).
		Msg("duty toggle")

	writeJSON(w, http.StatusOK, ToggleResponse{
		Action:  string(result.Action),
		Shift:   toShiftDTO(&result.Shift),
		Summary: toSummaryDTO(summary),
	})
}

func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())

	u, summary, err := h.Sessions.Summary(r.Context(), claims.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AttendanceResponse{
		User:           toUserDTO(u),
		Summary:        toSummaryDTO(summary),
		History:        groupHistory(u),
		MonthlyHistory: toMonthlyDTOs(u.MonthlyHistory),
	})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())

	u, err := h.Repo.GetUser(r.Context(), claims.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AttendanceResponse{
		User:           toUserDTO(u),
		History:        groupHistory(u),
		MonthlyHistory: toMonthlyDTOs(u.MonthlyHistory),
	})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.Roster.ChangePassword(r.Context(), claims.UserID, req.NewPassword); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.Roster.Rename(r.Context(), claims.UserID, req.DisplayName); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// =============================================================================
// ADMIN - ROSTER
// =============================================================================

func (h *Handler) AdminPanel(w http.ResponseWriter, r *http.Request) {
	users, err := h.Repo.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users", err)
		return
	}

	today := h.Clock.Today()
	var resp PanelResponse
	for _, u := range users {
		resp.Users = append(resp.Users, toUserDTO(u))

		switch {
		case u.OpenShift(today) != nil:
			resp.Stats.OnDuty++
		case hasClosedShift(u, today):
			resp.Stats.OffDuty++
		default:
			resp.Stats.NotStarted++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func hasClosedShift(u *duty.User, day duty.DayKey) bool {
	for i := range u.Attendance {
		if u.Attendance[i].Date == day && !u.Attendance[i].IsOpen() {
			return true
		}
	}
	return false
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	u, err := h.Roster.Register(r.Context(), roster.RegisterInput{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Position:    req.Position,
		Rank:        req.Rank,
		Role:        duty.Role(req.Role),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Log.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("user registered")
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Roster.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req SetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	role := duty.Role(req.Role)
	if role != duty.RoleUser && role != duty.RoleAdmin {
		writeError(w, http.StatusBadRequest, "role must be user or admin", nil)
		return
	}

	if err := h.Roster.SetRole(r.Context(), chi.URLParam(r, "id"), role); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) SetPosition(w http.ResponseWriter, r *http.Request) {
	var req SetPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.Roster.SetPosition(r.Context(), chi.URLParam(r, "id"), req.Position, req.Rank); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// =============================================================================
// ADMIN - DUTY CONTROL
// =============================================================================

func (h *Handler) ForceOn(w http.ResponseWriter, r *http.Request) {
	shift, err := h.Sessions.ForceOn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

func (h *Handler) ForceOff(w http.ResponseWriter, r *http.Request) {
	shift, err := h.Sessions.ForceOff(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

func (h *Handler) ResetDay(w http.ResponseWriter, r *http.Request) {
	var req ResetDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Date == "" {
		writeError(w, http.StatusBadRequest, "a date (DD/MM/YYYY) is required", err)
		return
	}

	removed, err := h.Sessions.ResetDay(r.Context(), chi.URLParam(r, "id"), duty.DayKey(req.Date))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) ResetSalary(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.ResetUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) ResetAllSalaries(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.ResetAll(r.Context()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	closed, err := h.Sessions.Reconciler().SweepAll(r.Context())
	if err != nil {
		h.Log.Error().Err(err).Int("closed", closed).Msg("reconcile sweep finished with errors")
		writeError(w, http.StatusInternalServerError, "reconciliation finished with errors", err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{ShiftsClosed: closed})
}

// =============================================================================
// ADMIN - REPORTING
// =============================================================================

func (h *Handler) UserHistory(w http.ResponseWriter, r *http.Request) {
	u, err := h.Repo.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	users, err := h.Repo.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users", err)
		return
	}

	serverTotal := decimal.Zero
	for _, other := range users {
		for i := range other.Attendance {
			serverTotal = serverTotal.Add(other.Attendance[i].Salary)
		}
	}

	userTotal := decimal.Zero
	for i := range u.Attendance {
		userTotal = userTotal.Add(u.Attendance[i].Salary)
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		History:     groupHistory(u),
		UserTotal:   formatPayout(userTotal),
		ServerTotal: formatPayout(serverTotal),
	})
}

func (h *Handler) Meta(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MetaResponse{
		Positions: duty.Positions(),
		Ranks:     duty.Ranks,
		DailyCap:  duty.DailyCap.StringFixed(2),
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP outcomes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, roster.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials", nil)
	case duty.IsNotFound(err):
		writeError(w, http.StatusNotFound, "user not found", nil)
	case duty.IsClientError(err),
		errors.Is(err, duty.ErrConcurrentModification),
		errors.Is(err, roster.ErrUsernameTaken),
		errors.Is(err, roster.ErrDisplayNameTaken):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, roster.ErrMissingField):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, duty.ErrMalformedOnTime):
		h.Log.Error().Err(err).Msg("data integrity: malformed on-time stamp")
		writeError(w, http.StatusInternalServerError, "stored shift record is unreadable", err)
	default:
		h.Log.Error().Err(err).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

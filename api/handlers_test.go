package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lssd/dutyclock/api"
	"github.com/lssd/dutyclock/duty"
	"github.com/lssd/dutyclock/roster"
	"github.com/lssd/dutyclock/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testAPI struct {
	server *httptest.Server
	store  *memory.Store
	clock  *duty.ManualClock
	roster *roster.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := memory.New()
	clock := duty.NewManualClock(time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC))
	rosterSvc := roster.NewService(store)
	sessions := duty.NewSessionManager(store, clock)
	auth := api.NewAuthenticator("test-secret", time.Hour, "test")

	h := api.NewHandler(sessions, rosterSvc, store, clock, auth, zerolog.Nop())
	server := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(server.Close)

	return &testAPI{server: server, store: store, clock: clock, roster: rosterSvc}
}

func (a *testAPI) register(t *testing.T, username string, role duty.Role) *duty.User {
	t.Helper()
	u, err := a.roster.Register(context.Background(), roster.RegisterInput{
		Username:    username,
		Password:    "hunter2",
		DisplayName: "Member " + username,
		Position:    "Officer",
		Role:        role,
	})
	require.NoError(t, err)
	return u
}

func (a *testAPI) login(t *testing.T, username string) string {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/login", "",
		map[string]string{"username": username, "password": "hunter2"})
	require.Equal(t, http.StatusOK, status, "login failed: %s", body)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (a *testAPI) do(t *testing.T, method, path, token string, payload any) (int, []byte) {
	t.Helper()

	var body *bytes.Buffer = bytes.NewBuffer(nil)
	if payload != nil {
		require.NoError(t, json.NewEncoder(body).Encode(payload))
	}

	req, err := http.NewRequest(method, a.server.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out.Bytes()
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestLogin_BadCredentials(t *testing.T) {
	// GIVEN: A registered officer
	// WHEN: Logging in with the wrong password
	// THEN: 401, no token

	a := newTestAPI(t)
	a.register(t, "alice", duty.RoleUser)

	status, _ := a.do(t, http.MethodPost, "/api/login", "",
		map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAttendance_RequiresToken(t *testing.T) {
	a := newTestAPI(t)

	status, _ := a.do(t, http.MethodGet, "/api/attendance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = a.do(t, http.MethodGet, "/api/attendance", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminRoutes_RejectOrdinaryUsers(t *testing.T) {
	// GIVEN: A logged-in ordinary officer
	// WHEN: They hit an admin route
	// THEN: 403

	a := newTestAPI(t)
	a.register(t, "alice", duty.RoleUser)
	token := a.login(t, "alice")

	status, _ := a.do(t, http.MethodGet, "/api/admin/panel", token, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

// =============================================================================
// CLOCKING
// =============================================================================

func TestToggle_FullFlow(t *testing.T) {
	// GIVEN: A logged-in officer
	// WHEN: They toggle on at 09:00 and off at 11:00
	// THEN: Responses report clock_on then clock_off with 2.00 hours and
	//       21428.00 salary

	a := newTestAPI(t)
	a.register(t, "alice", duty.RoleUser)
	token := a.login(t, "alice")

	status, body := a.do(t, http.MethodPost, "/api/attendance/toggle", token, nil)
	require.Equal(t, http.StatusOK, status, "toggle failed: %s", body)

	var on struct {
		Action  string `json:"action"`
		Summary struct {
			OnDuty bool `json:"on_duty"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(body, &on))
	assert.Equal(t, "clock_on", on.Action)
	assert.True(t, on.Summary.OnDuty)

	a.clock.Advance(2 * time.Hour)

	status, body = a.do(t, http.MethodPost, "/api/attendance/toggle", token, nil)
	require.Equal(t, http.StatusOK, status)

	var off struct {
		Action string `json:"action"`
		Shift  struct {
			Hours  string `json:"hours"`
			Salary string `json:"salary"`
		} `json:"shift"`
	}
	require.NoError(t, json.Unmarshal(body, &off))
	assert.Equal(t, "clock_off", off.Action)
	assert.Equal(t, "2.00", off.Shift.Hours)
	assert.Equal(t, "21428.00", off.Shift.Salary)
}

func TestToggle_CapReachedMapsToConflict(t *testing.T) {
	// GIVEN: An officer who already completed the daily cap
	// WHEN: They try to clock on again
	// THEN: 409

	a := newTestAPI(t)
	a.register(t, "alice", duty.RoleUser)
	token := a.login(t, "alice")

	status, _ := a.do(t, http.MethodPost, "/api/attendance/toggle", token, nil)
	require.Equal(t, http.StatusOK, status)
	a.clock.Advance(4 * time.Hour)
	status, _ = a.do(t, http.MethodPost, "/api/attendance/toggle", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = a.do(t, http.MethodPost, "/api/attendance/toggle", token, nil)
	assert.Equal(t, http.StatusConflict, status)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAdmin_CreateUserAndDuplicate(t *testing.T) {
	a := newTestAPI(t)
	a.register(t, "chief", duty.RoleAdmin)
	token := a.login(t, "chief")

	payload := map[string]string{
		"username": "rookie", "password": "pw",
		"display_name": "Rookie", "position": "Reserve Officer", "rank": "Cadet",
	}

	status, body := a.do(t, http.MethodPost, "/api/admin/users", token, payload)
	assert.Equal(t, http.StatusCreated, status, "create failed: %s", body)

	status, _ = a.do(t, http.MethodPost, "/api/admin/users", token, payload)
	assert.Equal(t, http.StatusConflict, status)
}

func TestAdmin_ForceOffWithoutShift(t *testing.T) {
	a := newTestAPI(t)
	a.register(t, "chief", duty.RoleAdmin)
	alice := a.register(t, "alice", duty.RoleUser)
	token := a.login(t, "chief")

	status, _ := a.do(t, http.MethodPost, "/api/admin/users/"+alice.ID+"/force-off", token, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestAdmin_UnknownUserIs404(t *testing.T) {
	a := newTestAPI(t)
	a.register(t, "chief", duty.RoleAdmin)
	token := a.login(t, "chief")

	status, _ := a.do(t, http.MethodPost, "/api/admin/users/ghost/force-on", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdmin_ResetDayRequiresDate(t *testing.T) {
	a := newTestAPI(t)
	a.register(t, "chief", duty.RoleAdmin)
	alice := a.register(t, "alice", duty.RoleUser)
	token := a.login(t, "chief")

	status, _ := a.do(t, http.MethodPost, "/api/admin/users/"+alice.ID+"/reset-day", token,
		map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdmin_PanelCountsDutyStates(t *testing.T) {
	// GIVEN: One officer on duty, one off after a shift, one never started
	// WHEN: The panel is read
	// THEN: The headcount buckets match

	a := newTestAPI(t)
	a.register(t, "chief", duty.RoleAdmin)
	a.register(t, "idle", duty.RoleUser)

	a.register(t, "working", duty.RoleUser)
	workingToken := a.login(t, "working")
	status, _ := a.do(t, http.MethodPost, "/api/attendance/toggle", workingToken, nil)
	require.Equal(t, http.StatusOK, status)

	a.register(t, "done", duty.RoleUser)
	doneToken := a.login(t, "done")
	status, _ = a.do(t, http.MethodPost, "/api/attendance/toggle", doneToken, nil)
	require.Equal(t, http.StatusOK, status)
	a.clock.Advance(90 * time.Minute)
	status, _ = a.do(t, http.MethodPost, "/api/attendance/toggle", doneToken, nil)
	require.Equal(t, http.StatusOK, status)

	adminToken := a.login(t, "chief")
	status, body := a.do(t, http.MethodGet, "/api/admin/panel", adminToken, nil)
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		Stats struct {
			OnDuty     int `json:"on_duty"`
			OffDuty    int `json:"off_duty"`
			NotStarted int `json:"not_started"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, 1, resp.Stats.OnDuty)
	assert.Equal(t, 1, resp.Stats.OffDuty)
	assert.Equal(t, 2, resp.Stats.NotStarted) // chief and idle
}

func TestAdmin_MetaListsPayTable(t *testing.T) {
	a := newTestAPI(t)
	a.register(t, "chief", duty.RoleAdmin)
	token := a.login(t, "chief")

	status, body := a.do(t, http.MethodGet, "/api/admin/meta", token, nil)
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		Positions []string `json:"positions"`
		Ranks     []string `json:"ranks"`
		DailyCap  string   `json:"daily_cap"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Contains(t, resp.Positions, "Director")
	assert.Contains(t, resp.Ranks, "Chief")
	assert.Equal(t, "4.00", resp.DailyCap)
}

func TestAdmin_ExportPayrollStreamsWorkbook(t *testing.T) {
	a := newTestAPI(t)
	a.register(t, "chief", duty.RoleAdmin)
	token := a.login(t, "chief")

	req, err := http.NewRequest(http.MethodGet, a.server.URL+"/api/admin/export", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "payroll-10-03-2026.xlsx")
}

func TestAdmin_ReconcileEndpoint(t *testing.T) {
	// GIVEN: An officer with a shift hanging from yesterday
	// WHEN: An admin triggers reconciliation
	// THEN: The sweep reports one closed shift

	a := newTestAPI(t)
	a.register(t, "chief", duty.RoleAdmin)
	a.register(t, "alice", duty.RoleUser)
	aliceToken := a.login(t, "alice")

	status, _ := a.do(t, http.MethodPost, "/api/attendance/toggle", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)

	// Jump past midnight plus the grace window.
	a.clock.Set(time.Date(2026, time.March, 11, 0, 10, 0, 0, time.UTC))

	adminToken := a.login(t, "chief")
	status, body := a.do(t, http.MethodPost, "/api/admin/reconcile", adminToken, nil)
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		ShiftsClosed int `json:"shifts_closed"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, 1, resp.ShiftsClosed)
}

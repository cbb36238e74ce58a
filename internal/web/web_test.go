package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"realtycrm/internal/access"
	"realtycrm/internal/account"
	"realtycrm/internal/config"
	"realtycrm/internal/database"
	"realtycrm/internal/lead"
	"realtycrm/internal/model"
	"realtycrm/internal/ratelimit"
	"realtycrm/internal/settings"
	"realtycrm/internal/transition"
	"realtycrm/internal/user"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "TestPassword123!"

type memUsers struct {
	byLogin map[string]model.User
}

func (m *memUsers) GetUserByLoginID(_ context.Context, loginID string) (model.User, error) {
	u, ok := m.byLogin[loginID]
	if !ok {
		return model.User{}, database.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) GetUserByID(_ context.Context, id uuid.UUID) (model.User, error) {
	for _, u := range m.byLogin {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, database.ErrUserNotFound
}

type memLeads struct {
	mu    sync.Mutex
	leads map[uuid.UUID]model.Lead
}

func (m *memLeads) ListLeads(_ context.Context, params database.ListLeadsParams) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Lead
	for _, l := range m.leads {
		if params.CreatedBy.IsSet && l.CreatedBy != params.CreatedBy.Val {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *memLeads) GetLeadByID(_ context.Context, id uuid.UUID) (model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return model.Lead{}, database.ErrLeadNotFound
	}
	return l, nil
}

func (m *memLeads) CreateLead(_ context.Context, params database.CreateLeadParams) (model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := model.Lead{
		ID:        uuid.New(),
		Name:      params.Name,
		Phone:     params.Phone,
		Status:    params.Status,
		Notes:     params.Notes,
		CreatedBy: params.CreatedBy,
	}
	m.leads[l.ID] = l
	return l, nil
}

func (m *memLeads) UpdateLeadByID(_ context.Context, id uuid.UUID, params database.UpdateLeadParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return database.ErrLeadNotFound
	}
	if params.Status.IsSet {
		l.Status = params.Status.Val
	}
	m.leads[id] = l
	return nil
}

func (m *memLeads) AppendLeadNote(_ context.Context, id uuid.UUID, note model.LeadNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.leads[id]
	l.Notes = append(l.Notes, note)
	m.leads[id] = l
	return nil
}

func (m *memLeads) DeleteLeadByID(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leads, id)
	return nil
}

type noSettings struct{}

func (noSettings) GetSettings(context.Context) (model.Settings, error) {
	return model.Settings{}, database.ErrSettingsNotFound
}

func (noSettings) UpsertSettings(context.Context, model.Settings) error {
	return nil
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, model.Actor, model.Module, model.ActivityAction, string) {}

type nopSessions struct{}

func (nopSessions) ClearSession(string) {}

type testEnv struct {
	app   *fiber.App
	users map[string]model.User
}

func newTestEnv(t *testing.T, health map[string]HealthCheck) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	users := map[string]model.User{}
	for _, u := range []model.User{
		{ID: uuid.New(), LoginID: "admin", Name: "Admin", Role: model.RoleAdmin},
		{ID: uuid.New(), LoginID: "manager", Name: "Mira", Role: model.RoleManager},
		{ID: uuid.New(), LoginID: "u1", Name: "Uma", Role: model.RoleStaff},
		{ID: uuid.New(), LoginID: "u2", Name: "Ravi", Role: model.RoleStaff},
	} {
		u.Status = model.UserStatusActive
		u.PasswordHash = string(hash)
		users[u.LoginID] = u
	}

	accounts := &memUsers{byLogin: users}
	authorizer := access.NewAuthorizer(logger, nil)
	authorizer.CheckAccounts(accounts)
	limiter := ratelimit.NewRateLimiter(ratelimit.NewMemoryCounter(), 100, time.Minute)
	services := Services{
		Authorizer: &authorizer,
		Accounts:   accounts,
		Auth:       account.NewAuthenticator(logger, accounts, limiter, nopSessions{}),
		Leads:      lead.NewManager(logger, &memLeads{leads: map[uuid.UUID]model.Lead{}}, &authorizer, nopRecorder{}, nil, nil),
		Settings:   settings.NewManager(logger, noSettings{}, &authorizer, nopRecorder{}, nil, nil),
	}
	sessions := NewSessionStore(config.SessionConfig{Expiration: time.Hour}, nil)
	server := NewServer(logger, sessions, services, Options{LoginRequests: 100, LoginWindow: time.Minute, Health: health})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	server.Routes(app)
	return &testEnv{app: app, users: users}
}

type envelope struct {
	Status  ResponseStatus  `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp, env
}

func (e *testEnv) login(t *testing.T, loginID string) *http.Cookie {
	t.Helper()
	resp, env := e.do(t, http.MethodPost, "/api/auth/login", account.LoginParam{LoginID: loginID, Password: testPassword}, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Message)
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("edit lead: %w", access.ErrForbidden), fiber.StatusForbidden},
		{fmt.Errorf("failed to get lead: %w", database.ErrLeadNotFound), fiber.StatusNotFound},
		{transition.ErrLeaveFinalized, fiber.StatusConflict},
		{database.ErrLoginIDTaken, fiber.StatusConflict},
		{user.ErrHasReports, fiber.StatusConflict},
		{transition.ErrInvalidStatus, fiber.StatusBadRequest},
		{ratelimit.ErrTooManyAttempts, fiber.StatusTooManyRequests},
		{account.ErrInvalidCredentials, fiber.StatusUnauthorized},
		{fiber.NewError(fiber.StatusBadRequest, "Invalid id"), fiber.StatusBadRequest},
		{errors.New("connection reset"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorStatus(tt.err), tt.err.Error())
	}
}

func TestRoutes_RequireSession(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/leads", nil, nil)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, ResponseStatusError, body.Status)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/auth/login", account.LoginParam{LoginID: "u1", Password: "WrongPassword1!"}, nil)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, account.ErrInvalidCredentials.Error(), body.Message)
}

func TestMe_ReturnsModuleViews(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.login(t, "manager")

	resp, body := env.do(t, http.MethodGet, "/api/me", nil, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var me meResponse
	require.NoError(t, json.Unmarshal(body.Data, &me))
	assert.Equal(t, model.RoleManager, me.Actor.Role)
	assert.True(t, me.Modules[model.ModuleLeads].IsManagerView)
	assert.False(t, me.Modules[model.ModuleLeads].CanEdit)
	assert.Equal(t, model.DefaultSettings().CompanyName, me.Settings.CompanyName)
}

func TestSession_FollowsStoredRole(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.login(t, "admin")

	demoted := env.users["admin"]
	demoted.Role = model.RoleStaff
	env.users["admin"] = demoted

	resp, body := env.do(t, http.MethodGet, "/api/me", nil, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var me meResponse
	require.NoError(t, json.Unmarshal(body.Data, &me))
	assert.Equal(t, model.RoleStaff, me.Actor.Role)
	assert.True(t, me.Modules[model.ModuleLeads].IsStaffView)
	assert.False(t, me.Modules[model.ModuleSettings].CanEdit)

	resp, _ = env.do(t, http.MethodPut, "/api/settings", map[string]any{"company_name": "Acme"}, cookie)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestSession_EndsWhenAccountDeactivated(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.login(t, "u1")

	inactive := env.users["u1"]
	inactive.Status = model.UserStatusInactive
	env.users["u1"] = inactive

	resp, _ := env.do(t, http.MethodGet, "/api/leads", nil, cookie)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	inactive.Status = model.UserStatusActive
	env.users["u1"] = inactive
	resp, _ = env.do(t, http.MethodGet, "/api/leads", nil, cookie)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "the ended session stays ended")
}

func TestLeads_StaffOnlySeeOwnLeads(t *testing.T) {
	env := newTestEnv(t, nil)
	u1 := env.login(t, "u1")
	u2 := env.login(t, "u2")

	resp, body := env.do(t, http.MethodPost, "/api/leads", map[string]any{"name": "Rahul", "phone": "+91 98765 43210"}, u1)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body.Message)
	var created model.Lead
	require.NoError(t, json.Unmarshal(body.Data, &created))
	assert.Equal(t, model.LeadStatusPending, created.Status)

	_, body = env.do(t, http.MethodGet, "/api/leads", nil, u2)
	var listing access.Listing[model.Lead]
	require.NoError(t, json.Unmarshal(body.Data, &listing))
	assert.Empty(t, listing.Items)
	assert.True(t, listing.View.IsStaffView)

	resp, _ = env.do(t, http.MethodGet, "/api/leads/"+created.ID.String(), nil, u2)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	_, body = env.do(t, http.MethodGet, "/api/leads", nil, u1)
	require.NoError(t, json.Unmarshal(body.Data, &listing))
	assert.Len(t, listing.Items, 1)
}

func TestLeads_ManagerCannotChangeStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	u1 := env.login(t, "u1")
	manager := env.login(t, "manager")

	_, body := env.do(t, http.MethodPost, "/api/leads", map[string]any{"name": "Rahul", "phone": "12345"}, u1)
	var created model.Lead
	require.NoError(t, json.Unmarshal(body.Data, &created))

	resp, _ := env.do(t, http.MethodPost, "/api/leads/"+created.ID.String()+"/status", map[string]any{"status": "closed"}, manager)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestLeads_ValidationFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	u1 := env.login(t, "u1")

	resp, body := env.do(t, http.MethodPost, "/api/leads", map[string]any{"name": "No phone"}, u1)

	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body.Message, "phone: required")
}

func TestLeads_InvalidID(t *testing.T) {
	env := newTestEnv(t, nil)
	u1 := env.login(t, "u1")

	resp, body := env.do(t, http.MethodGet, "/api/leads/not-a-uuid", nil, u1)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid id", body.Message)
}

func TestLogout_EndsSession(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.login(t, "u1")

	resp, _ := env.do(t, http.MethodPost, "/api/auth/logout", nil, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/me", nil, cookie)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	})

	resp, body := env.do(t, http.MethodGet, "/api/health", nil, nil)

	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	var checks map[string]string
	require.NoError(t, json.Unmarshal(body.Data, &checks))
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "unavailable", checks["redis"])
}

package leave

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"realtycrm/internal/access"
	"realtycrm/internal/config"
	"realtycrm/internal/database"
	"realtycrm/internal/model"
	"realtycrm/internal/transition"
	"realtycrm/internal/util"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListLeaves(ctx context.Context, params database.ListLeavesParams) ([]model.Leave, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]model.Leave), args.Error(1)
}

func (m *mockStore) GetLeaveByID(ctx context.Context, id uuid.UUID) (model.Leave, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Leave), args.Error(1)
}

func (m *mockStore) CreateLeave(ctx context.Context, params database.CreateLeaveParams) (model.Leave, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.Leave), args.Error(1)
}

func (m *mockStore) UpdateLeaveDecision(ctx context.Context, leave model.Leave) error {
	return m.Called(ctx, leave).Error(0)
}

func (m *mockStore) DeleteLeaveByID(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) ListReportIDs(ctx context.Context, managerID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, managerID)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type logEntry struct {
	action  model.ActivityAction
	details string
}

type recorderSpy struct {
	entries []logEntry
}

func (r *recorderSpy) Record(_ context.Context, _ model.Actor, _ model.Module, action model.ActivityAction, details string) {
	r.entries = append(r.entries, logEntry{action: action, details: details})
}

var (
	staff   = model.Actor{ID: uuid.New(), Name: "Arjun", Role: model.RoleStaff}
	other   = model.Actor{ID: uuid.New(), Name: "Dev", Role: model.RoleStaff}
	manager = model.Actor{ID: uuid.New(), Name: "Priya", Role: model.RoleManager}
	admin   = model.Actor{ID: uuid.New(), Name: "Root", Role: model.RoleAdmin}
	fixedAt = time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
)

func newTestManager(store Store, scope config.LeaveScope) (*Manager, *recorderSpy) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authorizer := access.NewAuthorizer(logger, nil)
	spy := &recorderSpy{}
	m := NewManager(logger, store, &authorizer, spy, nil, nil, scope)
	m.now = func() time.Time { return fixedAt }
	return m, spy
}

func pendingLeave(owner model.Actor) model.Leave {
	return model.Leave{
		ID:        uuid.New(),
		UserID:    owner.ID,
		UserName:  owner.Name,
		UserRole:  owner.Role,
		Type:      model.LeaveTypeCasual,
		StartDate: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC),
		Reason:    "family function",
		Status:    model.LeaveStatusPending,
	}
}

func TestReject_WithoutReasonStampsApprover(t *testing.T) {
	leave := pendingLeave(staff)
	store := new(mockStore)
	store.On("GetLeaveByID", mock.Anything, leave.ID).Return(leave, nil)
	store.On("UpdateLeaveDecision", mock.Anything, mock.Anything).Return(nil)

	m, spy := newTestManager(store, config.LeaveScopeAll)
	got, err := m.Reject(context.Background(), manager, leave.ID, "")

	require.NoError(t, err)
	assert.Equal(t, model.LeaveStatusRejected, got.Status)
	assert.Equal(t, util.Some(manager.ID), got.ApprovedBy)
	assert.Equal(t, util.Some(fixedAt), got.ApprovedAt)
	assert.Equal(t, leave.StartDate, got.StartDate)
	assert.Equal(t, leave.EndDate, got.EndDate)
	assert.Equal(t, leave.Reason, got.Reason)
	require.Len(t, spy.entries, 1)
	assert.Equal(t, model.ActivityRejected, spy.entries[0].action)
}

func TestReject_ReasonOnlyInActivityLog(t *testing.T) {
	leave := pendingLeave(staff)
	store := new(mockStore)
	store.On("GetLeaveByID", mock.Anything, leave.ID).Return(leave, nil)
	store.On("UpdateLeaveDecision", mock.Anything, mock.MatchedBy(func(l model.Leave) bool {
		return l.Reason == "family function"
	})).Return(nil)

	m, spy := newTestManager(store, config.LeaveScopeAll)
	_, err := m.Reject(context.Background(), admin, leave.ID, "peak season")

	require.NoError(t, err)
	assert.Contains(t, spy.entries[0].details, "peak season")
}

func TestApprove_FinalizedLeave(t *testing.T) {
	for _, status := range []model.LeaveStatus{model.LeaveStatusApproved, model.LeaveStatusRejected} {
		leave := pendingLeave(staff)
		leave.Status = status
		leave.ApprovedBy = util.Some(admin.ID)
		store := new(mockStore)
		store.On("GetLeaveByID", mock.Anything, leave.ID).Return(leave, nil)

		m, spy := newTestManager(store, config.LeaveScopeAll)

		_, err := m.Approve(context.Background(), manager, leave.ID)
		assert.ErrorIs(t, err, transition.ErrLeaveFinalized)
		_, err = m.Reject(context.Background(), manager, leave.ID, "")
		assert.ErrorIs(t, err, transition.ErrLeaveFinalized)
		assert.Empty(t, spy.entries)
		store.AssertNotCalled(t, "UpdateLeaveDecision", mock.Anything, mock.Anything)
	}
}

func TestApprove_ConcurrentDecision(t *testing.T) {
	leave := pendingLeave(staff)
	store := new(mockStore)
	store.On("GetLeaveByID", mock.Anything, leave.ID).Return(leave, nil)
	store.On("UpdateLeaveDecision", mock.Anything, mock.Anything).Return(database.ErrLeaveNotPending)

	m, spy := newTestManager(store, config.LeaveScopeAll)
	_, err := m.Approve(context.Background(), manager, leave.ID)

	assert.ErrorIs(t, err, transition.ErrLeaveFinalized)
	assert.Empty(t, spy.entries)
}

func TestApprove_StaffForbidden(t *testing.T) {
	store := new(mockStore)
	m, _ := newTestManager(store, config.LeaveScopeAll)

	_, err := m.Approve(context.Background(), staff, uuid.New())

	assert.ErrorIs(t, err, access.ErrForbidden)
	store.AssertNotCalled(t, "GetLeaveByID", mock.Anything, mock.Anything)
}

func TestApprove_ReportsScope(t *testing.T) {
	report := pendingLeave(staff)
	outsider := pendingLeave(other)

	store := new(mockStore)
	store.On("ListReportIDs", mock.Anything, manager.ID).Return([]uuid.UUID{staff.ID}, nil)
	store.On("GetLeaveByID", mock.Anything, report.ID).Return(report, nil)
	store.On("GetLeaveByID", mock.Anything, outsider.ID).Return(outsider, nil)
	store.On("UpdateLeaveDecision", mock.Anything, mock.Anything).Return(nil)

	m, _ := newTestManager(store, config.LeaveScopeReports)

	_, err := m.Approve(context.Background(), manager, report.ID)
	require.NoError(t, err)
	_, err = m.Approve(context.Background(), manager, outsider.ID)
	assert.ErrorIs(t, err, access.ErrForbidden)
}

func TestDecide_OwnRequest(t *testing.T) {
	own := pendingLeave(manager)
	adminOwn := pendingLeave(admin)

	store := new(mockStore)
	store.On("GetLeaveByID", mock.Anything, own.ID).Return(own, nil)
	store.On("GetLeaveByID", mock.Anything, adminOwn.ID).Return(adminOwn, nil)
	store.On("UpdateLeaveDecision", mock.Anything, mock.Anything).Return(nil).Once()

	m, spy := newTestManager(store, config.LeaveScopeAll)

	_, err := m.Approve(context.Background(), manager, own.ID)
	assert.ErrorIs(t, err, access.ErrForbidden)
	assert.ErrorIs(t, err, ErrOwnRequest)
	_, err = m.Reject(context.Background(), manager, own.ID, "")
	assert.ErrorIs(t, err, ErrOwnRequest)
	assert.Empty(t, spy.entries)

	decided, err := m.Approve(context.Background(), admin, adminOwn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeaveStatusApproved, decided.Status)
	store.AssertExpectations(t)
}

func TestList(t *testing.T) {
	mine := pendingLeave(staff)
	theirs := pendingLeave(other)
	decided := pendingLeave(staff)
	decided.Status = model.LeaveStatusApproved

	t.Run("staff_sees_own", func(t *testing.T) {
		store := new(mockStore)
		store.On("ListLeaves", mock.Anything, database.ListLeavesParams{UserID: util.Some(staff.ID)}).
			Return([]model.Leave{mine, theirs, decided}, nil)
		m, _ := newTestManager(store, config.LeaveScopeAll)

		listing := m.List(context.Background(), staff, ListFilter{})
		assert.Len(t, listing.Items, 2)
		assert.NotContains(t, listing.Controls, model.ActionApprove)
	})

	t.Run("manager_pending_queue", func(t *testing.T) {
		store := new(mockStore)
		store.On("ListLeaves", mock.Anything, database.ListLeavesParams{Status: util.Some(model.LeaveStatusPending)}).
			Return([]model.Leave{mine, theirs, decided}, nil)
		m, _ := newTestManager(store, config.LeaveScopeAll)

		listing := m.List(context.Background(), manager, ListFilter{PendingOnly: true})
		assert.Len(t, listing.Items, 2)
		assert.True(t, listing.View.ShowOnlyPending)
		assert.Contains(t, listing.Controls, model.ActionApprove)
	})

	t.Run("manager_reports_scope_in_query", func(t *testing.T) {
		own := pendingLeave(manager)
		store := new(mockStore)
		store.On("ListReportIDs", mock.Anything, manager.ID).Return([]uuid.UUID{staff.ID}, nil)
		store.On("ListLeaves", mock.Anything, mock.MatchedBy(func(p database.ListLeavesParams) bool {
			return !p.UserID.IsSet && p.UserIDs.IsSet && len(p.UserIDs.Val) == 2 &&
				slices.Contains(p.UserIDs.Val, staff.ID) && slices.Contains(p.UserIDs.Val, manager.ID) &&
				p.Page == database.Page{Limit: 2}
		})).Return([]model.Leave{mine, own}, nil).Once()
		m, _ := newTestManager(store, config.LeaveScopeReports)

		listing := m.List(context.Background(), manager, ListFilter{Page: database.Page{Limit: 2}})
		assert.Len(t, listing.Items, 2)
		assert.False(t, listing.Degraded)
		store.AssertExpectations(t)
	})

	t.Run("reports_lookup_failure_degrades", func(t *testing.T) {
		store := new(mockStore)
		store.On("ListReportIDs", mock.Anything, manager.ID).Return([]uuid.UUID(nil), errors.New("timeout"))
		store.On("ListLeaves", mock.Anything, mock.Anything).Return([]model.Leave{mine, theirs}, nil)
		m, _ := newTestManager(store, config.LeaveScopeReports)

		listing := m.List(context.Background(), manager, ListFilter{})
		assert.Empty(t, listing.Items)
		assert.True(t, listing.Degraded)
	})
}

func TestRequest(t *testing.T) {
	store := new(mockStore)
	store.On("CreateLeave", mock.Anything, mock.MatchedBy(func(p database.CreateLeaveParams) bool {
		return p.UserID == manager.ID && p.UserName == "Priya" && p.UserRole == model.RoleManager
	})).Return(pendingLeave(manager), nil).Once()

	m, spy := newTestManager(store, config.LeaveScopeAll)

	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	_, err := m.Request(context.Background(), manager, RequestInput{Type: model.LeaveTypeAnnual, StartDate: start, EndDate: start.AddDate(0, 0, 2)})
	require.NoError(t, err)
	assert.Len(t, spy.entries, 1)

	_, err = m.Request(context.Background(), manager, RequestInput{Type: model.LeaveTypeAnnual, StartDate: start, EndDate: start.AddDate(0, 0, -1)})
	assert.ErrorIs(t, err, ErrInvalidDates)
	store.AssertExpectations(t)
}

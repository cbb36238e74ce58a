package lead

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"realtycrm/internal/access"
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

func (m *mockStore) ListLeads(ctx context.Context, params database.ListLeadsParams) ([]model.Lead, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]model.Lead), args.Error(1)
}

func (m *mockStore) GetLeadByID(ctx context.Context, id uuid.UUID) (model.Lead, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Lead), args.Error(1)
}

func (m *mockStore) CreateLead(ctx context.Context, params database.CreateLeadParams) (model.Lead, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.Lead), args.Error(1)
}

func (m *mockStore) UpdateLeadByID(ctx context.Context, id uuid.UUID, params database.UpdateLeadParams) error {
	return m.Called(ctx, id, params).Error(0)
}

func (m *mockStore) AppendLeadNote(ctx context.Context, id uuid.UUID, note model.LeadNote) error {
	return m.Called(ctx, id, note).Error(0)
}

func (m *mockStore) DeleteLeadByID(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type entry struct {
	actor  model.Actor
	action model.ActivityAction
}

type recorderSpy struct {
	entries []entry
}

func (r *recorderSpy) Record(_ context.Context, actor model.Actor, _ model.Module, action model.ActivityAction, _ string) {
	r.entries = append(r.entries, entry{actor: actor, action: action})
}

func newTestManager(store Store) (*Manager, *recorderSpy) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authorizer := access.NewAuthorizer(logger, nil)
	spy := &recorderSpy{}
	return NewManager(logger, store, &authorizer, spy, nil, nil), spy
}

var (
	u1    = model.Actor{ID: uuid.New(), Name: "Asha", Role: model.RoleStaff}
	u2    = model.Actor{ID: uuid.New(), Name: "Ravi", Role: model.RoleStaff}
	boss  = model.Actor{ID: uuid.New(), Name: "Meera", Role: model.RoleManager}
	admin = model.Actor{ID: uuid.New(), Name: "Root", Role: model.RoleAdmin}
)

func TestList_StaffSeesOnlyOwnLeads(t *testing.T) {
	l1 := model.Lead{ID: uuid.New(), Name: "A", CreatedBy: u1.ID}
	l2 := model.Lead{ID: uuid.New(), Name: "B", CreatedBy: u2.ID}

	store := new(mockStore)
	// Even if the store ignored the owner filter, the list must not leak u2's lead.
	store.On("ListLeads", mock.Anything, database.ListLeadsParams{CreatedBy: util.Some(u1.ID)}).
		Return([]model.Lead{l1, l2}, nil)

	m, _ := newTestManager(store)
	listing := m.List(context.Background(), u1, ListFilter{})

	require.Len(t, listing.Items, 1)
	assert.Equal(t, l1.ID, listing.Items[0].ID)
	assert.ElementsMatch(t, []model.Action{model.ActionCreate, model.ActionEdit}, listing.Controls)
	assert.False(t, listing.Degraded)
}

func TestList_ManagerMonitorsWithoutControls(t *testing.T) {
	leads := []model.Lead{{ID: uuid.New(), CreatedBy: u1.ID}, {ID: uuid.New(), CreatedBy: u2.ID}}
	store := new(mockStore)
	store.On("ListLeads", mock.Anything, database.ListLeadsParams{}).Return(leads, nil)

	m, _ := newTestManager(store)
	listing := m.List(context.Background(), boss, ListFilter{})

	assert.Len(t, listing.Items, 2)
	assert.True(t, listing.View.IsManagerView)
	assert.Empty(t, listing.Controls)
}

func TestList_StoreFailureIsDegraded(t *testing.T) {
	store := new(mockStore)
	store.On("ListLeads", mock.Anything, mock.Anything).Return([]model.Lead(nil), errors.New("timeout"))

	m, _ := newTestManager(store)
	listing := m.List(context.Background(), admin, ListFilter{})

	assert.True(t, listing.Degraded)
	assert.NotNil(t, listing.Items)
	assert.Empty(t, listing.Items)
}

func TestCreate_DefaultsToPendingAndLogs(t *testing.T) {
	store := new(mockStore)
	store.On("CreateLead", mock.Anything, mock.MatchedBy(func(p database.CreateLeadParams) bool {
		return p.Status == model.LeadStatusPending && p.CreatedBy == u1.ID && len(p.Notes) == 1
	})).Return(model.Lead{ID: uuid.New(), Name: "Kiran", CreatedBy: u1.ID}, nil)

	m, spy := newTestManager(store)
	lead, err := m.Create(context.Background(), u1, CreateInput{Name: "Kiran", Phone: "98450", Note: "wants 2BHK"})

	require.NoError(t, err)
	assert.Equal(t, "Kiran", lead.Name)
	require.Len(t, spy.entries, 1)
	assert.Equal(t, model.ActivityCreated, spy.entries[0].action)
	store.AssertExpectations(t)
}

func TestCreate_ManagerRejected(t *testing.T) {
	store := new(mockStore)
	m, spy := newTestManager(store)

	_, err := m.Create(context.Background(), boss, CreateInput{Name: "X", Phone: "1"})

	assert.ErrorIs(t, err, access.ErrForbidden)
	assert.Empty(t, spy.entries)
	store.AssertNotCalled(t, "CreateLead", mock.Anything, mock.Anything)
}

func TestSetStatus(t *testing.T) {
	lead := model.Lead{ID: uuid.New(), Name: "Kiran", Status: model.LeadStatusPending, CreatedBy: u1.ID}

	tests := []struct {
		name    string
		actor   model.Actor
		status  model.LeadStatus
		wantErr error
		stored  bool
	}{
		{name: "owner_any_to_any", actor: u1, status: model.LeadStatusReminder, stored: true},
		{name: "admin_edits_any_lead", actor: admin, status: model.LeadStatusNotInterested, stored: true},
		{name: "other_staff_forbidden", actor: u2, status: model.LeadStatusInterested, wantErr: access.ErrForbidden},
		{name: "manager_monitor_only", actor: boss, status: model.LeadStatusInterested, wantErr: access.ErrForbidden},
		{name: "invalid_status", actor: u1, status: "closed", wantErr: transition.ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mockStore)
			store.On("GetLeadByID", mock.Anything, lead.ID).Return(lead, nil)
			store.On("UpdateLeadByID", mock.Anything, lead.ID, database.UpdateLeadParams{Status: util.Some(tt.status)}).Return(nil)

			m, spy := newTestManager(store)
			got, err := m.SetStatus(context.Background(), tt.actor, lead.ID, tt.status)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, spy.entries)
				store.AssertNotCalled(t, "UpdateLeadByID", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.Len(t, spy.entries, 1)
		})
	}
}

func TestSetStatus_StoreErrorNotLogged(t *testing.T) {
	lead := model.Lead{ID: uuid.New(), CreatedBy: u1.ID, Status: model.LeadStatusPending}
	store := new(mockStore)
	store.On("GetLeadByID", mock.Anything, lead.ID).Return(lead, nil)
	store.On("UpdateLeadByID", mock.Anything, lead.ID, mock.Anything).Return(errors.New("write failed"))

	m, spy := newTestManager(store)
	_, err := m.SetStatus(context.Background(), u1, lead.ID, model.LeadStatusInterested)

	assert.Error(t, err)
	assert.Empty(t, spy.entries)
}

func TestUpdate_BudgetRangeChecksMergedLead(t *testing.T) {
	lead := model.Lead{ID: uuid.New(), Name: "Rahul", CreatedBy: u1.ID, BudgetMin: 5_000_000, BudgetMax: 8_000_000}
	store := new(mockStore)
	store.On("GetLeadByID", mock.Anything, lead.ID).Return(lead, nil)
	store.On("UpdateLeadByID", mock.Anything, lead.ID, database.UpdateLeadParams{BudgetMax: util.Some(int64(6_000_000))}).Return(nil).Once()

	m, spy := newTestManager(store)

	tooLow := int64(4_000_000)
	_, err := m.Update(context.Background(), u1, lead.ID, UpdateInput{BudgetMax: &tooLow})
	assert.ErrorIs(t, err, ErrBudgetRange)

	tooHigh := int64(9_000_000)
	_, err = m.Update(context.Background(), u1, lead.ID, UpdateInput{BudgetMin: &tooHigh})
	assert.ErrorIs(t, err, ErrBudgetRange)
	assert.Empty(t, spy.entries)

	narrowed := int64(6_000_000)
	_, err = m.Update(context.Background(), u1, lead.ID, UpdateInput{BudgetMax: &narrowed})
	require.NoError(t, err)
	assert.Len(t, spy.entries, 1)
	store.AssertExpectations(t)
}

func TestAddNote(t *testing.T) {
	lead := model.Lead{ID: uuid.New(), CreatedBy: u1.ID, Notes: []model.LeadNote{}}
	store := new(mockStore)
	store.On("GetLeadByID", mock.Anything, lead.ID).Return(lead, nil)
	store.On("AppendLeadNote", mock.Anything, lead.ID, mock.MatchedBy(func(n model.LeadNote) bool {
		return n.Text == "called back" && n.AuthorID == u1.ID && n.AuthorName == "Asha"
	})).Return(nil)

	m, spy := newTestManager(store)
	got, err := m.AddNote(context.Background(), u1, lead.ID, "  called back ")

	require.NoError(t, err)
	require.Len(t, got.Notes, 1)
	assert.Len(t, spy.entries, 1)

	_, err = m.AddNote(context.Background(), u1, lead.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyNote)
}

func TestGet_StaffCannotReadOthersLead(t *testing.T) {
	lead := model.Lead{ID: uuid.New(), CreatedBy: u2.ID}
	store := new(mockStore)
	store.On("GetLeadByID", mock.Anything, lead.ID).Return(lead, nil)

	m, _ := newTestManager(store)
	_, err := m.Get(context.Background(), u1, lead.ID)

	assert.ErrorIs(t, err, access.ErrForbidden)
}

func TestDelete_AdminOnly(t *testing.T) {
	lead := model.Lead{ID: uuid.New(), Name: "Old", CreatedBy: u1.ID}
	store := new(mockStore)
	store.On("GetLeadByID", mock.Anything, lead.ID).Return(lead, nil)
	store.On("DeleteLeadByID", mock.Anything, lead.ID).Return(nil).Once()

	m, spy := newTestManager(store)

	assert.ErrorIs(t, m.Delete(context.Background(), u1, lead.ID), access.ErrForbidden)
	require.NoError(t, m.Delete(context.Background(), admin, lead.ID))
	require.Len(t, spy.entries, 1)
	assert.Equal(t, model.ActivityDeleted, spy.entries[0].action)
	store.AssertExpectations(t)
}

package announcement

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"realtycrm/internal/access"
	"realtycrm/internal/database"
	"realtycrm/internal/model"
	"realtycrm/internal/util"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListAnnouncements(ctx context.Context, params database.ListAnnouncementsParams) ([]model.Announcement, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]model.Announcement), args.Error(1)
}

func (m *mockStore) GetAnnouncementByID(ctx context.Context, id uuid.UUID) (model.Announcement, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Announcement), args.Error(1)
}

func (m *mockStore) CreateAnnouncement(ctx context.Context, params database.CreateAnnouncementParams) (model.Announcement, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.Announcement), args.Error(1)
}

func (m *mockStore) SetAnnouncementActive(ctx context.Context, id uuid.UUID, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *mockStore) DeleteAnnouncementByID(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type recorderSpy struct {
	actions []model.ActivityAction
}

func (r *recorderSpy) Record(_ context.Context, _ model.Actor, _ model.Module, action model.ActivityAction, _ string) {
	r.actions = append(r.actions, action)
}

var (
	now   = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	admin = model.Actor{ID: uuid.New(), Role: model.RoleAdmin}
	staff = model.Actor{ID: uuid.New(), Role: model.RoleStaff}
	boss  = model.Actor{ID: uuid.New(), Role: model.RoleManager}
)

func newTestManager(store Store) (*Manager, *recorderSpy) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authorizer := access.NewAuthorizer(logger, nil)
	spy := &recorderSpy{}
	m := NewManager(logger, store, NewDismissals(), &authorizer, spy, nil, nil)
	m.now = func() time.Time { return now }
	return m, spy
}

func activeFor(createdAt time.Time, roles ...model.Role) model.Announcement {
	return model.Announcement{ID: uuid.New(), Priority: model.PriorityLow, TargetRoles: roles, CreatedAt: createdAt, IsActive: true}
}

func TestBanner_DismissalIsolatedPerSessionAndAnnouncement(t *testing.T) {
	a := activeFor(now.Add(-2*time.Hour), model.RoleStaff)
	b := activeFor(now.Add(-time.Hour), model.RoleStaff)
	store := new(mockStore)
	store.On("ListAnnouncements", mock.Anything, database.ListAnnouncementsParams{IsActive: util.Some(true)}).
		Return([]model.Announcement{a, b}, nil)

	m, spy := newTestManager(store)

	res := m.Banner(context.Background(), staff, "s1")
	require.Len(t, res.Items, 2)
	assert.Equal(t, b.ID, res.Items[0].ID, "newest first")

	m.Dismiss("s1", a.ID)

	res = m.Banner(context.Background(), staff, "s1")
	require.Len(t, res.Items, 1)
	assert.Equal(t, b.ID, res.Items[0].ID)

	assert.Len(t, m.Banner(context.Background(), staff, "s2").Items, 2, "other sessions unaffected")

	m.ClearSession("s1")
	assert.Len(t, m.Banner(context.Background(), staff, "s1").Items, 2, "logout resets dismissals")
	assert.Empty(t, spy.actions)
}

func TestBanner_ExpiredHighPriorityHidden(t *testing.T) {
	expired := activeFor(now.Add(-48*time.Hour), model.RoleStaff, model.RoleManager)
	expired.Priority = model.PriorityHigh
	expired.ExpiresAt = util.Some(now.Add(-time.Hour))
	managersOnly := activeFor(now.Add(-time.Hour), model.RoleManager)

	store := new(mockStore)
	store.On("ListAnnouncements", mock.Anything, mock.Anything).Return([]model.Announcement{expired, managersOnly}, nil)

	m, _ := newTestManager(store)

	assert.Empty(t, m.Banner(context.Background(), staff, "s").Items)
	assert.Len(t, m.Banner(context.Background(), boss, "s").Items, 1)
	assert.Empty(t, m.Banner(context.Background(), admin, "s").Items)
}

func TestCreate(t *testing.T) {
	store := new(mockStore)
	store.On("CreateAnnouncement", mock.Anything, mock.MatchedBy(func(p database.CreateAnnouncementParams) bool {
		return p.Priority == model.PriorityMedium && len(p.TargetRoles) == 1
	})).Return(model.Announcement{ID: uuid.New(), Title: "Holiday"}, nil).Once()

	m, spy := newTestManager(store)

	_, err := m.Create(context.Background(), admin, CreateInput{Title: "Holiday", Message: "Office closed", TargetRoles: []model.Role{model.RoleStaff, model.RoleStaff}})
	require.NoError(t, err)
	assert.Equal(t, []model.ActivityAction{model.ActivityCreated}, spy.actions)

	_, err = m.Create(context.Background(), admin, CreateInput{Title: "x", Message: "y", TargetRoles: []model.Role{model.RoleAdmin}})
	assert.ErrorIs(t, err, ErrInvalidAudience)

	_, err = m.Create(context.Background(), boss, CreateInput{Title: "x", Message: "y"})
	assert.ErrorIs(t, err, access.ErrForbidden)
	store.AssertExpectations(t)
}

func TestToggle_OnlyFlipsActive(t *testing.T) {
	a := activeFor(now, model.RoleStaff)
	a.Priority = model.PriorityHigh
	a.ExpiresAt = util.Some(now.Add(24 * time.Hour))
	store := new(mockStore)
	store.On("GetAnnouncementByID", mock.Anything, a.ID).Return(a, nil)
	store.On("SetAnnouncementActive", mock.Anything, a.ID, false).Return(nil).Once()

	m, spy := newTestManager(store)

	got, err := m.Toggle(context.Background(), admin, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, a.Priority, got.Priority)
	assert.Equal(t, a.ExpiresAt, got.ExpiresAt)
	assert.Len(t, spy.actions, 1)

	_, err = m.Toggle(context.Background(), boss, a.ID)
	assert.ErrorIs(t, err, access.ErrForbidden)
}

func TestDismissals_Sweep(t *testing.T) {
	d := NewDismissals()
	clock := now
	d.now = func() time.Time { return clock }

	d.Dismiss("old", uuid.New())
	clock = clock.Add(2 * time.Hour)
	d.Dismiss("fresh", uuid.New())

	assert.Equal(t, 1, d.Sweep(time.Hour))
	assert.Equal(t, 1, d.Len())
	assert.False(t, d.For("old")(uuid.New()))
}

package project

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
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

func (m *mockStore) ListProjects(ctx context.Context, params database.ListProjectsParams) ([]model.Project, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]model.Project), args.Error(1)
}

func (m *mockStore) GetProjectByID(ctx context.Context, id uuid.UUID) (model.Project, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Project), args.Error(1)
}

func (m *mockStore) CreateProject(ctx context.Context, params database.CreateProjectParams) (model.Project, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.Project), args.Error(1)
}

func (m *mockStore) UpdateProjectByID(ctx context.Context, id uuid.UUID, params database.UpdateProjectParams) error {
	return m.Called(ctx, id, params).Error(0)
}

func (m *mockStore) AppendProjectPhoto(ctx context.Context, id uuid.UUID, key string) error {
	return m.Called(ctx, id, key).Error(0)
}

func (m *mockStore) DeleteProjectByID(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type memFiles struct {
	keys []string
}

func (f *memFiles) Store(_ context.Context, prefix, filename string, content io.Reader, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, content); err != nil {
		return "", err
	}
	key := prefix + "/" + filename
	f.keys = append(f.keys, key)
	return key, nil
}

func (f *memFiles) Delete(context.Context, string) error { return nil }

func (f *memFiles) GetURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

type recorderSpy struct {
	actions []model.ActivityAction
}

func (r *recorderSpy) Record(_ context.Context, _ model.Actor, _ model.Module, action model.ActivityAction, _ string) {
	r.actions = append(r.actions, action)
}

var (
	staff = model.Actor{ID: uuid.New(), Role: model.RoleStaff}
	boss  = model.Actor{ID: uuid.New(), Role: model.RoleManager}
	admin = model.Actor{ID: uuid.New(), Role: model.RoleAdmin}
)

func newTestManager(store Store, files Files) (*Manager, *recorderSpy) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authorizer := access.NewAuthorizer(logger, nil)
	spy := &recorderSpy{}
	return NewManager(logger, store, files, &authorizer, spy, nil, nil, Options{MaxFileSize: 1 << 20}), spy
}

func TestList_EveryViewerSeesAll(t *testing.T) {
	projects := []model.Project{
		{ID: uuid.New(), Status: model.ProjectStatusOngoing},
		{ID: uuid.New(), Status: model.ProjectStatusUpcoming},
	}
	store := new(mockStore)
	store.On("ListProjects", mock.Anything, database.ListProjectsParams{}).Return(projects, nil)

	m, _ := newTestManager(store, &memFiles{})
	for _, actor := range []model.Actor{staff, boss, admin} {
		listing := m.List(context.Background(), actor, ListFilter{})
		assert.Len(t, listing.Items, 2, actor.Role)
	}

	staffListing := m.List(context.Background(), staff, ListFilter{})
	assert.Empty(t, staffListing.Controls)
}

func TestList_StatusFilter(t *testing.T) {
	store := new(mockStore)
	store.On("ListProjects", mock.Anything, database.ListProjectsParams{Status: util.Some(model.ProjectStatusOngoing)}).
		Return([]model.Project{{Status: model.ProjectStatusOngoing}, {Status: model.ProjectStatusCompleted}}, nil)

	m, _ := newTestManager(store, &memFiles{})
	listing := m.List(context.Background(), admin, ListFilter{Status: model.ProjectStatusOngoing})

	require.Len(t, listing.Items, 1)
	assert.Equal(t, model.ProjectStatusOngoing, listing.Items[0].Status)
}

func TestCreate_RoleGate(t *testing.T) {
	store := new(mockStore)
	store.On("CreateProject", mock.Anything, mock.MatchedBy(func(p database.CreateProjectParams) bool {
		return p.Status == model.ProjectStatusUpcoming && p.CreatedBy == admin.ID
	})).Return(model.Project{ID: uuid.New(), Name: "Palm Grove"}, nil).Once()

	m, spy := newTestManager(store, &memFiles{})

	for _, actor := range []model.Actor{staff, boss} {
		_, err := m.Create(context.Background(), actor, CreateInput{Name: "Palm Grove", Location: "Pune"})
		assert.ErrorIs(t, err, access.ErrForbidden)
	}
	_, err := m.Create(context.Background(), admin, CreateInput{Name: "Palm Grove", Location: "Pune"})
	require.NoError(t, err)
	assert.Equal(t, []model.ActivityAction{model.ActivityCreated}, spy.actions)
	store.AssertExpectations(t)
}

func TestAddPhoto(t *testing.T) {
	project := model.Project{ID: uuid.New(), Name: "Palm Grove"}
	store := new(mockStore)
	store.On("GetProjectByID", mock.Anything, project.ID).Return(project, nil)
	store.On("AppendProjectPhoto", mock.Anything, project.ID, mock.AnythingOfType("string")).Return(nil).Once()

	files := &memFiles{}
	m, spy := newTestManager(store, files)

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	key, err := m.AddPhoto(context.Background(), admin, project.ID, "front.png", int64(len(png)), bytes.NewReader(png))
	require.NoError(t, err)
	assert.Equal(t, "projects/"+project.ID.String()+"/front.png", key)
	assert.Len(t, spy.actions, 1)

	_, err = m.AddPhoto(context.Background(), admin, project.ID, "notes.txt", 4, strings.NewReader("text"))
	assert.ErrorIs(t, err, ErrNotAnImage)
	store.AssertExpectations(t)
}

func TestGet_ResolvesPhotoURLs(t *testing.T) {
	project := model.Project{ID: uuid.New(), Photos: []string{"projects/a.png"}}
	store := new(mockStore)
	store.On("GetProjectByID", mock.Anything, project.ID).Return(project, nil)

	m, _ := newTestManager(store, &memFiles{})
	detail, err := m.Get(context.Background(), staff, project.ID)

	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/projects/a.png"}, detail.PhotoURLs)
}

package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"realtycrm/internal/access"
	"realtycrm/internal/audit"
	"realtycrm/internal/cache"
	"realtycrm/internal/database"
	"realtycrm/internal/model"
	"realtycrm/internal/storage"
	"realtycrm/internal/telemetry"
	"realtycrm/internal/transition"
	"realtycrm/internal/util"
	"realtycrm/internal/visibility"

	"github.com/google/uuid"
)

var (
	ErrNotAnImage   = errors.New("photo must be an image")
	ErrFileTooLarge = errors.New("file exceeds the upload limit")
)

type Store interface {
	ListProjects(ctx context.Context, params database.ListProjectsParams) ([]model.Project, error)
	GetProjectByID(ctx context.Context, id uuid.UUID) (model.Project, error)
	CreateProject(ctx context.Context, params database.CreateProjectParams) (model.Project, error)
	UpdateProjectByID(ctx context.Context, id uuid.UUID, params database.UpdateProjectParams) error
	AppendProjectPhoto(ctx context.Context, id uuid.UUID, key string) error
	DeleteProjectByID(ctx context.Context, id uuid.UUID) error
}

type Files interface {
	Store(ctx context.Context, prefix, filename string, content io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	GetURL(ctx context.Context, key string, expiration time.Duration) (string, error)
}

type Manager struct {
	logger      *slog.Logger
	store       Store
	files       Files
	authorizer  *access.Authorizer
	recorder    audit.Recorder
	snapshots   *cache.Snapshots
	metrics     *telemetry.Metrics
	maxFileSize int64
	urlExpiry   time.Duration
}

type Options struct {
	MaxFileSize int64
	URLExpiry   time.Duration
}

func NewManager(logger *slog.Logger, store Store, files Files, authorizer *access.Authorizer, recorder audit.Recorder, snapshots *cache.Snapshots, metrics *telemetry.Metrics, opts Options) *Manager {
	return &Manager{
		logger:      logger.With("component", "project_manager"),
		store:       store,
		files:       files,
		authorizer:  authorizer,
		recorder:    recorder,
		snapshots:   snapshots,
		metrics:     metrics,
		maxFileSize: opts.MaxFileSize,
		urlExpiry:   opts.URLExpiry,
	}
}

type ListFilter struct {
	Status model.ProjectStatus
	Page   database.Page
}

// List returns every project the actor may view. The catalogue is shared, so one snapshot
// serves all viewers.
func (m *Manager) List(ctx context.Context, actor model.Actor, filter ListFilter) access.Listing[model.Project] {
	view := m.authorizer.View(ctx, actor, model.ModuleProjects)
	if !view.CanView {
		return access.NewListing[model.Project](nil, view, false)
	}

	params := database.ListProjectsParams{Page: filter.Page}
	var statuses []model.ProjectStatus
	if filter.Status != "" {
		params.Status = util.Some(filter.Status)
		statuses = append(statuses, filter.Status)
	}

	key := cache.ListKey(model.ModuleProjects, uuid.Nil, string(filter.Status), filter.Page.Key())
	res := cache.Fetch(ctx, m.snapshots, key, func(ctx context.Context) ([]model.Project, error) {
		return m.store.ListProjects(ctx, params)
	})
	return access.NewListing(visibility.Projects(res.Items, view, statuses...), view, res.Degraded)
}

// Detail is a project with resolved photo links.
type Detail struct {
	model.Project
	PhotoURLs []string `json:"photo_urls"`
}

func (m *Manager) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (Detail, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleProjects, model.ActionView); err != nil {
		return Detail{}, err
	}
	project, err := m.store.GetProjectByID(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("failed to get project: %w", err)
	}

	detail := Detail{Project: project, PhotoURLs: make([]string, 0, len(project.Photos))}
	for _, key := range project.Photos {
		url, err := m.files.GetURL(ctx, key, m.urlExpiry)
		if err != nil {
			m.logger.WarnContext(ctx, "failed to resolve photo url", "project_id", id, "key", key, "error", err)
			continue
		}
		detail.PhotoURLs = append(detail.PhotoURLs, url)
	}
	return detail, nil
}

type CreateInput struct {
	Name        string              `json:"name" validate:"required,max=200"`
	Description string              `json:"description" validate:"max=5000"`
	Location    string              `json:"location" validate:"required,max=200"`
	Developer   string              `json:"developer" validate:"max=200"`
	PriceMin    int64               `json:"price_min" validate:"gte=0"`
	PriceMax    int64               `json:"price_max" validate:"gte=0,gtefield=PriceMin"`
	Status      model.ProjectStatus `json:"status" validate:"omitempty,project_status"`
	Amenities   []string            `json:"amenities" validate:"dive,max=100"`
}

func (m *Manager) Create(ctx context.Context, actor model.Actor, in CreateInput) (model.Project, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleProjects, model.ActionCreate); err != nil {
		return model.Project{}, err
	}
	status := in.Status
	if status == "" {
		status = model.ProjectStatusUpcoming
	}
	if !status.IsValid() {
		return model.Project{}, fmt.Errorf("project status %q: %w", status, transition.ErrInvalidStatus)
	}

	project, err := m.store.CreateProject(ctx, database.CreateProjectParams{
		Name:        in.Name,
		Description: in.Description,
		Location:    in.Location,
		Developer:   in.Developer,
		PriceMin:    in.PriceMin,
		PriceMax:    in.PriceMax,
		Status:      status,
		Amenities:   in.Amenities,
		CreatedBy:   actor.ID,
	})
	if err != nil {
		return model.Project{}, fmt.Errorf("failed to create project: %w", err)
	}

	m.record(ctx, actor, model.ActivityCreated, fmt.Sprintf("Created project %s", project.Name))
	return project, nil
}

type UpdateInput struct {
	Name        *string              `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string              `json:"description" validate:"omitempty,max=5000"`
	Location    *string              `json:"location" validate:"omitempty,max=200"`
	Developer   *string              `json:"developer" validate:"omitempty,max=200"`
	PriceMin    *int64               `json:"price_min" validate:"omitempty,gte=0"`
	PriceMax    *int64               `json:"price_max" validate:"omitempty,gte=0"`
	Status      *model.ProjectStatus `json:"status" validate:"omitempty,project_status"`
	Amenities   *[]string            `json:"amenities"`
}

func (m *Manager) Update(ctx context.Context, actor model.Actor, id uuid.UUID, in UpdateInput) (model.Project, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleProjects, model.ActionEdit); err != nil {
		return model.Project{}, err
	}
	if in.Status != nil && !in.Status.IsValid() {
		return model.Project{}, fmt.Errorf("project status %q: %w", *in.Status, transition.ErrInvalidStatus)
	}

	if err := m.store.UpdateProjectByID(ctx, id, database.UpdateProjectParams{
		Name:        util.FromPtr(in.Name),
		Description: util.FromPtr(in.Description),
		Location:    util.FromPtr(in.Location),
		Developer:   util.FromPtr(in.Developer),
		PriceMin:    util.FromPtr(in.PriceMin),
		PriceMax:    util.FromPtr(in.PriceMax),
		Status:      util.FromPtr(in.Status),
		Amenities:   util.FromPtr(in.Amenities),
	}); err != nil {
		return model.Project{}, fmt.Errorf("failed to update project: %w", err)
	}

	project, err := m.store.GetProjectByID(ctx, id)
	if err != nil {
		return model.Project{}, fmt.Errorf("failed to get project: %w", err)
	}
	m.record(ctx, actor, model.ActivityUpdated, fmt.Sprintf("Updated project %s", project.Name))
	return project, nil
}

// AddPhoto stores an image and appends its key to the project.
func (m *Manager) AddPhoto(ctx context.Context, actor model.Actor, id uuid.UUID, name string, size int64, content io.Reader) (string, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleProjects, model.ActionEdit); err != nil {
		return "", err
	}
	if m.maxFileSize > 0 && size > m.maxFileSize {
		return "", fmt.Errorf("%s (%d bytes): %w", name, size, ErrFileTooLarge)
	}
	project, err := m.store.GetProjectByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to get project: %w", err)
	}

	contentType, body, err := storage.DetectContentType(content)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%s is %s: %w", name, contentType, ErrNotAnImage)
	}

	key, err := m.files.Store(ctx, "projects/"+id.String(), name, body, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to store photo: %w", err)
	}
	if err := m.store.AppendProjectPhoto(ctx, id, key); err != nil {
		if delErr := m.files.Delete(ctx, key); delErr != nil {
			m.logger.WarnContext(ctx, "failed to remove orphaned photo", "key", key, "error", delErr)
		}
		return "", fmt.Errorf("failed to add photo to project: %w", err)
	}

	m.record(ctx, actor, model.ActivityUpdated, fmt.Sprintf("Added photo to project %s", project.Name))
	return key, nil
}

func (m *Manager) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if err := m.authorizer.Require(ctx, actor, model.ModuleProjects, model.ActionDelete); err != nil {
		return err
	}
	project, err := m.store.GetProjectByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	if err := m.store.DeleteProjectByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	for _, key := range project.Photos {
		if err := m.files.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrFileNotFound) {
			m.logger.WarnContext(ctx, "failed to delete project photo", "project_id", id, "key", key, "error", err)
		}
	}

	m.record(ctx, actor, model.ActivityDeleted, fmt.Sprintf("Deleted project %s", project.Name))
	return nil
}

func (m *Manager) record(ctx context.Context, actor model.Actor, action model.ActivityAction, details string) {
	m.recorder.Record(ctx, actor, model.ModuleProjects, action, details)
	m.metrics.RecordMutation(ctx, model.ModuleProjects, action)
}

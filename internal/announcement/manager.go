package announcement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"realtycrm/internal/access"
	"realtycrm/internal/audit"
	"realtycrm/internal/cache"
	"realtycrm/internal/database"
	"realtycrm/internal/model"
	"realtycrm/internal/telemetry"
	"realtycrm/internal/transition"
	"realtycrm/internal/util"
	"realtycrm/internal/visibility"

	"github.com/google/uuid"
)

var (
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidAudience = errors.New("announcements can only target managers and staff")
)

type Store interface {
	ListAnnouncements(ctx context.Context, params database.ListAnnouncementsParams) ([]model.Announcement, error)
	GetAnnouncementByID(ctx context.Context, id uuid.UUID) (model.Announcement, error)
	CreateAnnouncement(ctx context.Context, params database.CreateAnnouncementParams) (model.Announcement, error)
	SetAnnouncementActive(ctx context.Context, id uuid.UUID, active bool) error
	DeleteAnnouncementByID(ctx context.Context, id uuid.UUID) error
}

type Manager struct {
	logger     *slog.Logger
	store      Store
	dismissals *Dismissals
	authorizer *access.Authorizer
	recorder   audit.Recorder
	snapshots  *cache.Snapshots
	metrics    *telemetry.Metrics
	now        func() time.Time
}

func NewManager(logger *slog.Logger, store Store, dismissals *Dismissals, authorizer *access.Authorizer, recorder audit.Recorder, snapshots *cache.Snapshots, metrics *telemetry.Metrics) *Manager {
	return &Manager{
		logger:     logger.With("component", "announcement_manager"),
		store:      store,
		dismissals: dismissals,
		authorizer: authorizer,
		recorder:   recorder,
		snapshots:  snapshots,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// List is the management page: every announcement, active or not.
func (m *Manager) List(ctx context.Context, actor model.Actor, page database.Page) access.Listing[model.Announcement] {
	view := m.authorizer.View(ctx, actor, model.ModuleAnnouncements)
	if !view.CanView {
		return access.NewListing[model.Announcement](nil, view, false)
	}
	key := cache.ListKey(model.ModuleAnnouncements, uuid.Nil, page.Key())
	res := cache.Fetch(ctx, m.snapshots, key, func(ctx context.Context) ([]model.Announcement, error) {
		return m.store.ListAnnouncements(ctx, database.ListAnnouncementsParams{Page: page})
	})
	return access.NewListing(res.Items, view, res.Degraded)
}

// Banner returns the announcements to show the actor in this session, newest first.
func (m *Manager) Banner(ctx context.Context, actor model.Actor, sessionID string) cache.Result[model.Announcement] {
	res := cache.Fetch(ctx, m.snapshots, cache.ModuleKey(model.ModuleAnnouncements)+":active", func(ctx context.Context) ([]model.Announcement, error) {
		return m.store.ListAnnouncements(ctx, database.ListAnnouncementsParams{IsActive: util.Some(true)})
	})
	res.Items = visibility.Announcements(res.Items, actor.Role, m.dismissals.For(sessionID), m.now())
	return res
}

// Dismiss hides an announcement for the rest of the session. It touches no stored data and
// writes no activity log entry.
func (m *Manager) Dismiss(sessionID string, id uuid.UUID) {
	m.dismissals.Dismiss(sessionID, id)
}

// ClearSession forgets every dismissal of the session, used on logout.
func (m *Manager) ClearSession(sessionID string) {
	m.dismissals.Clear(sessionID)
}

type CreateInput struct {
	Title       string         `json:"title" validate:"required,max=200"`
	Message     string         `json:"message" validate:"required,max=5000"`
	Priority    model.Priority `json:"priority" validate:"omitempty,priority"`
	TargetRoles []model.Role   `json:"target_roles" validate:"dive,audience_role"`
	ExpiresAt   *time.Time     `json:"expires_at"`
}

func (m *Manager) Create(ctx context.Context, actor model.Actor, in CreateInput) (model.Announcement, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleAnnouncements, model.ActionCreate); err != nil {
		return model.Announcement{}, err
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.IsValid() {
		return model.Announcement{}, fmt.Errorf("%q: %w", priority, ErrInvalidPriority)
	}
	roles := make([]model.Role, 0, len(in.TargetRoles))
	for _, r := range in.TargetRoles {
		if !slices.Contains(model.AudienceRoles, r) {
			return model.Announcement{}, fmt.Errorf("%q: %w", r, ErrInvalidAudience)
		}
		if !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}

	a, err := m.store.CreateAnnouncement(ctx, database.CreateAnnouncementParams{
		Title:       in.Title,
		Message:     in.Message,
		Priority:    priority,
		TargetRoles: roles,
		CreatedBy:   actor.ID,
		ExpiresAt:   util.FromPtr(in.ExpiresAt),
	})
	if err != nil {
		return model.Announcement{}, fmt.Errorf("failed to create announcement: %w", err)
	}

	m.record(ctx, actor, model.ActivityCreated, fmt.Sprintf("Created %s priority announcement %q", a.Priority, a.Title))
	return a, nil
}

// Toggle flips isActive. Expiry and priority are left as they are.
func (m *Manager) Toggle(ctx context.Context, actor model.Actor, id uuid.UUID) (model.Announcement, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleAnnouncements, model.ActionEdit); err != nil {
		return model.Announcement{}, err
	}
	a, err := m.store.GetAnnouncementByID(ctx, id)
	if err != nil {
		return model.Announcement{}, fmt.Errorf("failed to get announcement: %w", err)
	}

	toggled := transition.ToggleAnnouncement(a)
	if err := m.store.SetAnnouncementActive(ctx, id, toggled.IsActive); err != nil {
		return model.Announcement{}, fmt.Errorf("failed to toggle announcement: %w", err)
	}

	state := "Deactivated"
	if toggled.IsActive {
		state = "Activated"
	}
	m.record(ctx, actor, model.ActivityUpdated, fmt.Sprintf("%s announcement %q", state, a.Title))
	return toggled, nil
}

func (m *Manager) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if err := m.authorizer.Require(ctx, actor, model.ModuleAnnouncements, model.ActionDelete); err != nil {
		return err
	}
	a, err := m.store.GetAnnouncementByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get announcement: %w", err)
	}
	if err := m.store.DeleteAnnouncementByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete announcement: %w", err)
	}

	m.record(ctx, actor, model.ActivityDeleted, fmt.Sprintf("Deleted announcement %q", a.Title))
	return nil
}

func (m *Manager) record(ctx context.Context, actor model.Actor, action model.ActivityAction, details string) {
	m.recorder.Record(ctx, actor, model.ModuleAnnouncements, action, details)
	m.metrics.RecordMutation(ctx, model.ModuleAnnouncements, action)
}

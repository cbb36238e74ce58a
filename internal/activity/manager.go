// Package activity serves the read side of the activity log.
package activity

import (
	"context"
	"log/slog"
	"time"

	"realtycrm/internal/access"
	"realtycrm/internal/cache"
	"realtycrm/internal/database"
	"realtycrm/internal/model"
	"realtycrm/internal/util"

	"github.com/google/uuid"
)

const defaultLimit = 100

type Store interface {
	ListActivityLogs(ctx context.Context, params database.ListActivityLogsParams) ([]model.ActivityLog, error)
}

type Manager struct {
	logger     *slog.Logger
	store      Store
	authorizer *access.Authorizer
	snapshots  *cache.Snapshots
}

func NewManager(logger *slog.Logger, store Store, authorizer *access.Authorizer, snapshots *cache.Snapshots) *Manager {
	return &Manager{
		logger:     logger.With("component", "activity_manager"),
		store:      store,
		authorizer: authorizer,
		snapshots:  snapshots,
	}
}

type ListFilter struct {
	UserID uuid.UUID
	Module model.Module
	Since  time.Time
	Page   database.Page
}

// List returns log entries newest first. Without an explicit limit the most recent 100 are
// returned.
func (m *Manager) List(ctx context.Context, actor model.Actor, filter ListFilter) access.Listing[model.ActivityLog] {
	view := m.authorizer.View(ctx, actor, model.ModuleActivity)
	if !view.CanView {
		return access.NewListing[model.ActivityLog](nil, view, false)
	}

	if filter.Page.Limit <= 0 {
		filter.Page.Limit = defaultLimit
	}
	params := database.ListActivityLogsParams{Page: filter.Page}
	var user, since string
	if filter.UserID != uuid.Nil {
		params.UserID = util.Some(filter.UserID)
		user = filter.UserID.String()
	}
	if filter.Module != "" {
		params.Module = util.Some(filter.Module)
	}
	if !filter.Since.IsZero() {
		params.Since = util.Some(filter.Since)
		since = filter.Since.UTC().Format(time.RFC3339)
	}

	key := cache.ListKey(model.ModuleActivity, uuid.Nil, user, string(filter.Module), since, filter.Page.Key())
	res := cache.Fetch(ctx, m.snapshots, key, func(ctx context.Context) ([]model.ActivityLog, error) {
		return m.store.ListActivityLogs(ctx, params)
	})
	return access.NewListing(res.Items, view, res.Degraded)
}

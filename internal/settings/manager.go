// Package settings owns the dashboard presentation settings. Update is the only write path.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"realtycrm/internal/access"
	"realtycrm/internal/audit"
	"realtycrm/internal/cache"
	"realtycrm/internal/database"
	"realtycrm/internal/model"
	"realtycrm/internal/telemetry"
	"realtycrm/internal/util"
)

type Store interface {
	GetSettings(ctx context.Context) (model.Settings, error)
	UpsertSettings(ctx context.Context, s model.Settings) error
}

type Manager struct {
	logger     *slog.Logger
	store      Store
	authorizer *access.Authorizer
	recorder   audit.Recorder
	snapshots  *cache.Snapshots
	metrics    *telemetry.Metrics
	now        func() time.Time
}

func NewManager(logger *slog.Logger, store Store, authorizer *access.Authorizer, recorder audit.Recorder, snapshots *cache.Snapshots, metrics *telemetry.Metrics) *Manager {
	return &Manager{
		logger:     logger.With("component", "settings_manager"),
		store:      store,
		authorizer: authorizer,
		recorder:   recorder,
		snapshots:  snapshots,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var snapshotKey = cache.ModuleKey(model.ModuleSettings)

// Get returns the current settings for any signed-in user. Before the first update the
// defaults apply; when the store is unreachable the last snapshot, or the defaults, are used.
func (m *Manager) Get(ctx context.Context) model.Settings {
	s, err := m.store.GetSettings(ctx)
	switch {
	case err == nil:
		m.snapshots.Save(ctx, snapshotKey, s)
		return s
	case errors.Is(err, database.ErrSettingsNotFound):
		return model.DefaultSettings()
	}

	m.logger.ErrorContext(ctx, "failed to load settings, using fallback", "error", err)
	var cached model.Settings
	if err := m.snapshots.Load(ctx, snapshotKey, &cached); err == nil {
		return cached
	}
	return model.DefaultSettings()
}

type UpdateInput struct {
	CompanyName  *string `json:"company_name" validate:"omitempty,min=1,max=200"`
	PrimaryColor *string `json:"primary_color" validate:"omitempty,hexcolor"`
	AccentColor  *string `json:"accent_color" validate:"omitempty,hexcolor"`
	LogoURL      *string `json:"logo_url" validate:"omitempty,url"`
	DarkMode     *bool   `json:"dark_mode"`
}

func (m *Manager) Update(ctx context.Context, actor model.Actor, in UpdateInput) (model.Settings, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleSettings, model.ActionEdit); err != nil {
		return model.Settings{}, err
	}

	current, err := m.store.GetSettings(ctx)
	if err != nil {
		if !errors.Is(err, database.ErrSettingsNotFound) {
			return model.Settings{}, fmt.Errorf("failed to load settings: %w", err)
		}
		current = model.DefaultSettings()
	}

	next := current
	if in.CompanyName != nil {
		next.CompanyName = *in.CompanyName
	}
	if in.PrimaryColor != nil {
		next.PrimaryColor = *in.PrimaryColor
	}
	if in.AccentColor != nil {
		next.AccentColor = *in.AccentColor
	}
	if in.LogoURL != nil {
		next.LogoURL = *in.LogoURL
	}
	if in.DarkMode != nil {
		next.DarkMode = *in.DarkMode
	}
	next.UpdatedBy = util.Some(actor.ID)
	next.UpdatedAt = m.now()

	if err := m.store.UpsertSettings(ctx, next); err != nil {
		return model.Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}
	m.snapshots.Save(ctx, snapshotKey, next)

	m.recorder.Record(ctx, actor, model.ModuleSettings, model.ActivityUpdated, "Updated dashboard settings")
	m.metrics.RecordMutation(ctx, model.ModuleSettings, model.ActivityUpdated)
	return next, nil
}

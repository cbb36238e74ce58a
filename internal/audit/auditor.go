// Package audit writes the append-only activity log that backs the admin activity page.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"realtycrm/internal/database"
	"realtycrm/internal/model"
)

// Store is the insert-only view of the activity log table.
type Store interface {
	CreateActivityLog(ctx context.Context, params database.CreateActivityLogParams) (model.ActivityLog, error)
}

// Recorder is called after every successful mutation.
type Recorder interface {
	Record(ctx context.Context, actor model.Actor, module model.Module, action model.ActivityAction, details string)
}

type Auditor struct {
	logger *slog.Logger
	store  Store
}

func NewAuditor(logger *slog.Logger, store Store) *Auditor {
	return &Auditor{logger: logger.With("component", "auditor"), store: store}
}

// Record writes one entry. A failed write is logged and swallowed so the mutation it describes
// still succeeds.
func (a *Auditor) Record(ctx context.Context, actor model.Actor, module model.Module, action model.ActivityAction, details string) {
	if err := a.LogEvent(ctx, LogEventParam{Actor: actor, Module: module, Action: action, Details: details}); err != nil {
		a.logger.ErrorContext(ctx, "failed to write activity log",
			"user_id", actor.ID, "module", module, "action", action, "error", err)
	}
}

type LogEventParam struct {
	Actor   model.Actor
	Module  model.Module
	Action  model.ActivityAction
	Details string
}

func (a *Auditor) LogEvent(ctx context.Context, params LogEventParam) error {
	if _, err := a.store.CreateActivityLog(ctx, database.CreateActivityLogParams{
		UserID:   params.Actor.ID,
		UserName: params.Actor.Name,
		UserRole: params.Actor.Role,
		Module:   params.Module,
		Action:   params.Action,
		Details:  params.Details,
	}); err != nil {
		return fmt.Errorf("failed to create activity log: %w", err)
	}
	return nil
}

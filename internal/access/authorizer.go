package access

import (
	"context"
	"fmt"
	"log/slog"

	"realtycrm/internal/model"

	"github.com/google/uuid"
)

// GrantChecker resolves per-user permission grants layered on top of the role gate.
type GrantChecker interface {
	Check(ctx context.Context, userID uuid.UUID, module model.Module, action model.Action) (bool, error)
}

// DeniedRecorder counts rejected mutations.
type DeniedRecorder interface {
	RecordDenied(ctx context.Context, module model.Module, action model.Action)
}

// Authorizer re-checks permissions right before a mutation is applied.
type Authorizer struct {
	logger   *slog.Logger
	grants   GrantChecker
	accounts UserGetter
	denied   DeniedRecorder
}

// NewAuthorizer creates an authorizer. A nil GrantChecker runs in pass-through mode where only
// the role gate applies.
func NewAuthorizer(logger *slog.Logger, grants GrantChecker) Authorizer {
	return Authorizer{logger: logger.With("component", "authorizer"), grants: grants}
}

func (a *Authorizer) Allowed(ctx context.Context, actor model.Actor, module model.Module, action model.Action) bool {
	current, ok := a.current(ctx, actor)
	if !ok {
		return false
	}
	return a.allowed(ctx, current, module, action)
}

func (a *Authorizer) allowed(ctx context.Context, actor model.Actor, module model.Module, action model.Action) bool {
	if !CanPerform(actor.Role, module, action) {
		return false
	}
	if actor.Role == model.RoleAdmin || a.grants == nil {
		return true
	}

	ok, err := a.grants.Check(ctx, actor.ID, module, action)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to resolve permission grant",
			"user_id", actor.ID, "module", module, "action", action, "error", err)
		return false
	}
	return ok
}

// CheckAccounts makes every decision reload the stored account: inactive or missing accounts
// are denied and the stored role replaces the one the caller carries.
func (a *Authorizer) CheckAccounts(users UserGetter) {
	a.accounts = users
}

func (a *Authorizer) current(ctx context.Context, actor model.Actor) (model.Actor, bool) {
	if actor.IsZero() {
		return model.Actor{}, false
	}
	if a.accounts == nil {
		return actor, true
	}
	user, err := a.accounts.GetUserByID(ctx, actor.ID)
	if err != nil {
		a.logger.WarnContext(ctx, "failed to load account", "user_id", actor.ID, "error", err)
		return model.Actor{}, false
	}
	if !user.IsActive() {
		return model.Actor{}, false
	}
	return user.Actor(), true
}

func (a *Authorizer) OnDenied(r DeniedRecorder) {
	a.denied = r
}

// Require returns ErrForbidden unless the actor may perform the action.
func (a *Authorizer) Require(ctx context.Context, actor model.Actor, module model.Module, action model.Action) error {
	if !a.Allowed(ctx, actor, module, action) {
		a.logger.WarnContext(ctx, "action denied",
			"user_id", actor.ID, "role", actor.Role, "module", module, "action", action)
		if a.denied != nil {
			a.denied.RecordDenied(ctx, module, action)
		}
		return fmt.Errorf("%s %s: %w", action, module, ErrForbidden)
	}
	return nil
}

// View narrows a ViewConfig by the actor's grants so a page never offers a control that Require
// would refuse.
func (a *Authorizer) View(ctx context.Context, actor model.Actor, module model.Module) ViewConfig {
	current, ok := a.current(ctx, actor)
	if !ok {
		return ViewConfig{Module: module}
	}
	cfg := ViewFor(current.Role, module)
	if current.Role == model.RoleAdmin || a.grants == nil {
		return cfg
	}
	cfg.CanView = cfg.CanView && a.allowed(ctx, current, module, model.ActionView)
	cfg.CanCreate = cfg.CanCreate && a.allowed(ctx, current, module, model.ActionCreate)
	cfg.CanEdit = cfg.CanEdit && a.allowed(ctx, current, module, model.ActionEdit)
	cfg.CanApprove = cfg.CanApprove && a.allowed(ctx, current, module, model.ActionApprove)
	cfg.CanDelete = cfg.CanDelete && a.allowed(ctx, current, module, model.ActionDelete)
	return cfg
}

// UserGetter is the slice of the user store the authorizer and StoreGrants need.
type UserGetter interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)
}

// StoreGrants resolves grants from the permission set stored on the user row. It is used when
// OpenFGA is disabled.
type StoreGrants struct {
	users UserGetter
}

func NewStoreGrants(users UserGetter) *StoreGrants {
	return &StoreGrants{users: users}
}

func (g *StoreGrants) Check(ctx context.Context, userID uuid.UUID, module model.Module, action model.Action) (bool, error) {
	user, err := g.users.GetUserByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load user permissions: %w", err)
	}
	if !user.IsActive() {
		return false, nil
	}
	return user.Grants(module, action), nil
}

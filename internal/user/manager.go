package user

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"realtycrm/internal/access"
	"realtycrm/internal/audit"
	"realtycrm/internal/cache"
	"realtycrm/internal/database"
	"realtycrm/internal/model"
	"realtycrm/internal/telemetry"
	"realtycrm/internal/util"
	"realtycrm/internal/visibility"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidManager     = errors.New("manager must be an existing admin or manager other than the user")
	ErrHasReports         = errors.New("user still has reports and cannot become staff")
	ErrSelfChange         = errors.New("you cannot deactivate or delete your own account")
	ErrInvalidPermissions = errors.New("invalid permission set")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidStatus      = errors.New("invalid user status")
)

type Store interface {
	ListUsers(ctx context.Context, params database.ListUsersParams) ([]model.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)
	CreateUser(ctx context.Context, params database.CreateUserParams) (model.User, error)
	UpdateUserByID(ctx context.Context, id uuid.UUID, params database.UpdateUserParams) error
	DeleteUserByID(ctx context.Context, id uuid.UUID) error
}

// GrantSync mirrors a user's permission set into the external authorization store.
type GrantSync interface {
	SyncUser(ctx context.Context, user model.User) error
	RemoveUser(ctx context.Context, userID uuid.UUID) error
}

type Manager struct {
	logger     *slog.Logger
	store      Store
	grants     GrantSync
	authorizer *access.Authorizer
	recorder   audit.Recorder
	snapshots  *cache.Snapshots
	metrics    *telemetry.Metrics
}

// NewManager creates the user manager. grants may be nil when OpenFGA is disabled.
func NewManager(logger *slog.Logger, store Store, grants GrantSync, authorizer *access.Authorizer, recorder audit.Recorder, snapshots *cache.Snapshots, metrics *telemetry.Metrics) *Manager {
	return &Manager{
		logger:     logger.With("component", "user_manager"),
		store:      store,
		grants:     grants,
		authorizer: authorizer,
		recorder:   recorder,
		snapshots:  snapshots,
		metrics:    metrics,
	}
}

type ListFilter struct {
	Role   model.Role
	Status model.UserStatus
	Page   database.Page
}

// List returns the user directory. Staff only see active accounts.
func (m *Manager) List(ctx context.Context, actor model.Actor, filter ListFilter) access.Listing[model.User] {
	view := m.authorizer.View(ctx, actor, model.ModuleUsers)
	if !view.CanView {
		return access.NewListing[model.User](nil, view, false)
	}

	params := database.ListUsersParams{Page: filter.Page}
	if filter.Role != "" {
		params.Role = util.Some(filter.Role)
	}
	switch {
	case view.ShowOnlyActive:
		params.Status = util.Some(model.UserStatusActive)
	case filter.Status != "":
		params.Status = util.Some(filter.Status)
	}

	key := cache.ListKey(model.ModuleUsers, actor.ID, string(filter.Role), string(filter.Status), filter.Page.Key())
	res := cache.Fetch(ctx, m.snapshots, key, func(ctx context.Context) ([]model.User, error) {
		return m.store.ListUsers(ctx, params)
	})
	return access.NewListing(visibility.Users(res.Items, view), view, res.Degraded)
}

func (m *Manager) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (model.User, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleUsers, model.ActionView); err != nil {
		return model.User{}, err
	}
	user, err := m.store.GetUserByID(ctx, id)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	view := m.authorizer.View(ctx, actor, model.ModuleUsers)
	if len(visibility.Users([]model.User{user}, view)) == 0 {
		return model.User{}, fmt.Errorf("view user %s: %w", id, database.ErrUserNotFound)
	}
	return user, nil
}

type CreateInput struct {
	LoginID     string             `json:"login_id" validate:"required,login_id"`
	Name        string             `json:"name" validate:"required,max=200"`
	Email       string             `json:"email" validate:"omitempty,email"`
	Phone       string             `json:"phone" validate:"omitempty,max=32"`
	Role        model.Role         `json:"role" validate:"required,role"`
	Password    string             `json:"password" validate:"required,password_strength"`
	Permissions []model.Permission `json:"permissions" validate:"dive"`
	ManagerID   *uuid.UUID         `json:"manager_id"`
}

func (m *Manager) Create(ctx context.Context, actor model.Actor, in CreateInput) (model.User, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleUsers, model.ActionCreate); err != nil {
		return model.User{}, err
	}
	if !in.Role.IsValid() {
		return model.User{}, fmt.Errorf("%q: %w", in.Role, ErrInvalidRole)
	}
	if err := validatePermissions(in.Permissions); err != nil {
		return model.User{}, err
	}
	if in.ManagerID != nil {
		if err := m.checkManager(ctx, uuid.Nil, *in.ManagerID); err != nil {
			return model.User{}, err
		}
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return model.User{}, err
	}

	user, err := m.store.CreateUser(ctx, database.CreateUserParams{
		LoginID:      strings.ToLower(strings.TrimSpace(in.LoginID)),
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		Role:         in.Role,
		Permissions:  in.Permissions,
		ManagerID:    util.FromPtr(in.ManagerID),
		PasswordHash: hash,
	})
	if err != nil {
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	m.syncGrants(ctx, user)
	m.record(ctx, actor, model.ActivityCreated, fmt.Sprintf("Created %s account %s", user.Role, user.LoginID))
	return user, nil
}

type UpdateInput struct {
	Name         *string             `json:"name" validate:"omitempty,min=1,max=200"`
	Email        *string             `json:"email" validate:"omitempty,email"`
	Phone        *string             `json:"phone" validate:"omitempty,max=32"`
	Role         *model.Role         `json:"role" validate:"omitempty,role"`
	Password     *string             `json:"password" validate:"omitempty,password_strength"`
	Permissions  *[]model.Permission `json:"permissions"`
	ManagerID    *uuid.UUID          `json:"manager_id"`
	ClearManager bool                `json:"clear_manager"`
}

func (m *Manager) Update(ctx context.Context, actor model.Actor, id uuid.UUID, in UpdateInput) (model.User, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleUsers, model.ActionEdit); err != nil {
		return model.User{}, err
	}
	if in.Permissions != nil {
		if err := validatePermissions(*in.Permissions); err != nil {
			return model.User{}, err
		}
	}
	current, err := m.store.GetUserByID(ctx, id)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	params := database.UpdateUserParams{
		Name:  util.FromPtr(in.Name),
		Email: util.FromPtr(in.Email),
		Phone: util.FromPtr(in.Phone),
	}
	if in.Role != nil {
		if !in.Role.IsValid() {
			return model.User{}, fmt.Errorf("%q: %w", *in.Role, ErrInvalidRole)
		}
		if *in.Role == model.RoleStaff && current.Role != model.RoleStaff {
			if err := m.checkNoReports(ctx, id); err != nil {
				return model.User{}, err
			}
		}
		params.Role = util.Some(*in.Role)
	}
	if in.Permissions != nil {
		params.Permissions = util.Some(*in.Permissions)
	}
	switch {
	case in.ClearManager:
		params.ManagerID = util.Some(util.None[uuid.UUID]())
	case in.ManagerID != nil:
		if err := m.checkManager(ctx, id, *in.ManagerID); err != nil {
			return model.User{}, err
		}
		params.ManagerID = util.Some(util.Some(*in.ManagerID))
	}
	if in.Password != nil {
		hash, err := HashPassword(*in.Password)
		if err != nil {
			return model.User{}, err
		}
		params.PasswordHash = util.Some(hash)
	}

	if err := m.store.UpdateUserByID(ctx, id, params); err != nil {
		return model.User{}, fmt.Errorf("failed to update user: %w", err)
	}
	user, err := m.store.GetUserByID(ctx, id)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	if in.Permissions != nil {
		m.syncGrants(ctx, user)
	}
	m.record(ctx, actor, model.ActivityUpdated, fmt.Sprintf("Updated account %s", user.LoginID))
	return user, nil
}

// SetStatus activates or deactivates an account. Deactivated users can no longer sign in, lose
// their OpenFGA tuples and have their cached list snapshots dropped. Reactivation restores the
// tuples from the stored permission set.
func (m *Manager) SetStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status model.UserStatus) (model.User, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleUsers, model.ActionEdit); err != nil {
		return model.User{}, err
	}
	if !status.IsValid() {
		return model.User{}, fmt.Errorf("%q: %w", status, ErrInvalidStatus)
	}
	if id == actor.ID && status == model.UserStatusInactive {
		return model.User{}, ErrSelfChange
	}

	user, err := m.store.GetUserByID(ctx, id)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	if user.Status == status {
		return user, nil
	}
	if err := m.store.UpdateUserByID(ctx, id, database.UpdateUserParams{Status: util.Some(status)}); err != nil {
		return model.User{}, fmt.Errorf("failed to update user status: %w", err)
	}
	user.Status = status

	if status == model.UserStatusInactive {
		m.removeGrants(ctx, id)
		m.snapshots.Invalidate(ctx, snapshotKeys(id)...)
	} else {
		m.syncGrants(ctx, user)
	}
	m.record(ctx, actor, model.ActivityUpdated, fmt.Sprintf("Set account %s %s", user.LoginID, status))
	return user, nil
}

func (m *Manager) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if err := m.authorizer.Require(ctx, actor, model.ModuleUsers, model.ActionDelete); err != nil {
		return err
	}
	if id == actor.ID {
		return ErrSelfChange
	}
	user, err := m.store.GetUserByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if err := m.checkNoReports(ctx, id); err != nil {
		return err
	}
	if err := m.store.DeleteUserByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	m.removeGrants(ctx, id)
	m.snapshots.Invalidate(ctx, snapshotKeys(id)...)
	m.record(ctx, actor, model.ActivityDeleted, fmt.Sprintf("Deleted account %s", user.LoginID))
	return nil
}

// checkManager enforces that a reporting link points at an existing admin or manager other
// than the user itself.
func (m *Manager) checkManager(ctx context.Context, userID, managerID uuid.UUID) error {
	if managerID == userID {
		return ErrInvalidManager
	}
	mgr, err := m.store.GetUserByID(ctx, managerID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return ErrInvalidManager
		}
		return fmt.Errorf("failed to get manager: %w", err)
	}
	if mgr.Role == model.RoleStaff {
		return ErrInvalidManager
	}
	return nil
}

func (m *Manager) checkNoReports(ctx context.Context, id uuid.UUID) error {
	reports, err := m.store.ListUsers(ctx, database.ListUsersParams{ManagerID: util.Some(id), Page: database.Page{Limit: 1}})
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	if len(reports) > 0 {
		return ErrHasReports
	}
	return nil
}

// syncGrants and removeGrants run after the account row is committed. A failure is logged and
// left for `openfga sync-users` to repair; the authorizer still checks the stored account on
// every request.
func (m *Manager) syncGrants(ctx context.Context, user model.User) {
	if m.grants == nil {
		return
	}
	if err := m.grants.SyncUser(ctx, user); err != nil {
		m.logger.ErrorContext(ctx, "failed to sync permission grants", "user_id", user.ID, "error", err)
	}
}

func (m *Manager) removeGrants(ctx context.Context, id uuid.UUID) {
	if m.grants == nil {
		return
	}
	if err := m.grants.RemoveUser(ctx, id); err != nil {
		m.logger.ErrorContext(ctx, "failed to remove permission grants", "user_id", id, "error", err)
	}
}

func (m *Manager) record(ctx context.Context, actor model.Actor, action model.ActivityAction, details string) {
	m.recorder.Record(ctx, actor, model.ModuleUsers, action, details)
	m.metrics.RecordMutation(ctx, model.ModuleUsers, action)
}

func validatePermissions(perms []model.Permission) error {
	seen := make(map[model.Module]bool, len(perms))
	for _, p := range perms {
		if !p.Module.IsValid() || seen[p.Module] {
			return fmt.Errorf("module %q: %w", p.Module, ErrInvalidPermissions)
		}
		seen[p.Module] = true
		for _, a := range p.Actions {
			if !a.IsValid() {
				return fmt.Errorf("action %q on %s: %w", a, p.Module, ErrInvalidPermissions)
			}
		}
	}
	return nil
}

// snapshotKeys lists the unfiltered list snapshots a user may have.
func snapshotKeys(id uuid.UUID) []string {
	keys := make([]string, 0, len(model.Modules))
	for _, module := range model.Modules {
		keys = append(keys, cache.ListKey(module, id))
	}
	return keys
}

// GeneratePassword returns a random password that passes the password_strength rule, for
// accounts whose password is handed out by an admin.
func GeneratePassword() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return "Crm-" + base64.RawURLEncoding.EncodeToString(b) + "7a", nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"realtycrm/internal/access"
	"realtycrm/internal/audit"
	"realtycrm/internal/cache"
	"realtycrm/internal/config"
	"realtycrm/internal/database"
	"realtycrm/internal/model"
	"realtycrm/internal/telemetry"
	"realtycrm/internal/transition"
	"realtycrm/internal/util"
	"realtycrm/internal/visibility"

	"github.com/google/uuid"
)

var (
	ErrInvalidDates = errors.New("end date must not be before start date")
	ErrInvalidType  = errors.New("invalid leave type")
	ErrOwnRequest   = errors.New("a manager cannot decide their own leave request")
)

type Store interface {
	ListLeaves(ctx context.Context, params database.ListLeavesParams) ([]model.Leave, error)
	GetLeaveByID(ctx context.Context, id uuid.UUID) (model.Leave, error)
	CreateLeave(ctx context.Context, params database.CreateLeaveParams) (model.Leave, error)
	UpdateLeaveDecision(ctx context.Context, leave model.Leave) error
	DeleteLeaveByID(ctx context.Context, id uuid.UUID) error
	ListReportIDs(ctx context.Context, managerID uuid.UUID) ([]uuid.UUID, error)
}

type Manager struct {
	logger     *slog.Logger
	store      Store
	authorizer *access.Authorizer
	recorder   audit.Recorder
	snapshots  *cache.Snapshots
	metrics    *telemetry.Metrics
	scope      config.LeaveScope
	now        func() time.Time
}

func NewManager(logger *slog.Logger, store Store, authorizer *access.Authorizer, recorder audit.Recorder, snapshots *cache.Snapshots, metrics *telemetry.Metrics, scope config.LeaveScope) *Manager {
	return &Manager{
		logger:     logger.With("component", "leave_manager"),
		store:      store,
		authorizer: authorizer,
		recorder:   recorder,
		snapshots:  snapshots,
		metrics:    metrics,
		scope:      scope,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type ListFilter struct {
	// PendingOnly selects the approval queue.
	PendingOnly bool
	Status      model.LeaveStatus
	Page        database.Page
}

func (m *Manager) List(ctx context.Context, actor model.Actor, filter ListFilter) access.Listing[model.Leave] {
	view := m.authorizer.View(ctx, actor, model.ModuleLeaves)
	if filter.PendingOnly {
		view = view.PendingOnly()
	}
	if !view.CanView {
		return access.NewListing[model.Leave](nil, view, false)
	}

	reports, reportsOK := m.reports(ctx, actor)

	// Scoping happens in the query so that pages are filled with visible rows only.
	params := database.ListLeavesParams{Page: filter.Page}
	switch {
	case actor.Role == model.RoleStaff, !reportsOK:
		params.UserID = util.Some(actor.ID)
	case reports != nil:
		params.UserIDs = util.Some(append(reports.IDs(), actor.ID))
	}
	switch {
	case filter.PendingOnly:
		params.Status = util.Some(model.LeaveStatusPending)
	case filter.Status != "":
		params.Status = util.Some(filter.Status)
	}

	var queue string
	if filter.PendingOnly {
		queue = "queue"
	}
	key := cache.ListKey(model.ModuleLeaves, actor.ID, queue, string(filter.Status), filter.Page.Key())
	res := cache.Fetch(ctx, m.snapshots, key, func(ctx context.Context) ([]model.Leave, error) {
		return m.store.ListLeaves(ctx, params)
	})
	return access.NewListing(visibility.Leaves(res.Items, actor, view, reports), view, res.Degraded || !reportsOK)
}

// reports resolves the manager's reporting set when leave visibility is scoped to reports. A nil
// set means no scoping. When the lookup fails the manager is limited to their own requests.
func (m *Manager) reports(ctx context.Context, actor model.Actor) (visibility.Reports, bool) {
	if actor.Role != model.RoleManager || m.scope != config.LeaveScopeReports {
		return nil, true
	}
	ids, err := m.store.ListReportIDs(ctx, actor.ID)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to load reporting users", "manager_id", actor.ID, "error", err)
		return visibility.NewReports(), false
	}
	return visibility.NewReports(ids...), true
}

type RequestInput struct {
	Type      model.LeaveType `json:"type" validate:"required,leave_type"`
	StartDate time.Time       `json:"start_date" validate:"required"`
	EndDate   time.Time       `json:"end_date" validate:"required"`
	Reason    string          `json:"reason" validate:"max=2000"`
}

// Request files a pending leave request for the actor. The requester's name and role are copied
// onto the request.
func (m *Manager) Request(ctx context.Context, actor model.Actor, in RequestInput) (model.Leave, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleLeaves, model.ActionCreate); err != nil {
		return model.Leave{}, err
	}
	if !in.Type.IsValid() {
		return model.Leave{}, fmt.Errorf("%q: %w", in.Type, ErrInvalidType)
	}
	if in.EndDate.Before(in.StartDate) {
		return model.Leave{}, ErrInvalidDates
	}

	leave, err := m.store.CreateLeave(ctx, database.CreateLeaveParams{
		UserID:    actor.ID,
		UserName:  actor.Name,
		UserRole:  actor.Role,
		Type:      in.Type,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Reason:    strings.TrimSpace(in.Reason),
	})
	if err != nil {
		return model.Leave{}, fmt.Errorf("failed to create leave request: %w", err)
	}

	m.record(ctx, actor, model.ActivityCreated, fmt.Sprintf("Requested %s leave for %d day(s)", leave.Type, leave.Days()))
	return leave, nil
}

func (m *Manager) Approve(ctx context.Context, actor model.Actor, id uuid.UUID) (model.Leave, error) {
	leave, err := m.loadForDecision(ctx, actor, id)
	if err != nil {
		return model.Leave{}, err
	}
	decided, err := transition.ApproveLeave(leave, actor, m.now())
	if err != nil {
		return model.Leave{}, err
	}
	if err := m.saveDecision(ctx, decided); err != nil {
		return model.Leave{}, err
	}

	m.record(ctx, actor, model.ActivityApproved, fmt.Sprintf("Approved %s leave for %s", leave.Type, leave.UserName))
	return decided, nil
}

// Reject declines a pending request. The optional reason only goes into the activity log.
func (m *Manager) Reject(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (model.Leave, error) {
	leave, err := m.loadForDecision(ctx, actor, id)
	if err != nil {
		return model.Leave{}, err
	}
	decided, err := transition.RejectLeave(leave, actor, m.now())
	if err != nil {
		return model.Leave{}, err
	}
	if err := m.saveDecision(ctx, decided); err != nil {
		return model.Leave{}, err
	}

	details := fmt.Sprintf("Rejected %s leave for %s", leave.Type, leave.UserName)
	if reason = strings.TrimSpace(reason); reason != "" {
		details += ": " + reason
	}
	m.record(ctx, actor, model.ActivityRejected, details)
	return decided, nil
}

func (m *Manager) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if err := m.authorizer.Require(ctx, actor, model.ModuleLeaves, model.ActionDelete); err != nil {
		return err
	}
	leave, err := m.store.GetLeaveByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get leave request: %w", err)
	}
	if err := m.store.DeleteLeaveByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete leave request: %w", err)
	}

	m.record(ctx, actor, model.ActivityDeleted, fmt.Sprintf("Deleted %s leave request of %s", leave.Type, leave.UserName))
	return nil
}

func (m *Manager) loadForDecision(ctx context.Context, actor model.Actor, id uuid.UUID) (model.Leave, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleLeaves, model.ActionApprove); err != nil {
		return model.Leave{}, err
	}
	leave, err := m.store.GetLeaveByID(ctx, id)
	if err != nil {
		return model.Leave{}, fmt.Errorf("failed to get leave request: %w", err)
	}
	// Admins have nobody above them and may decide their own requests.
	if leave.UserID == actor.ID && actor.Role != model.RoleAdmin {
		return model.Leave{}, fmt.Errorf("%w: %w", ErrOwnRequest, access.ErrForbidden)
	}

	reports, ok := m.reports(ctx, actor)
	if !ok {
		return model.Leave{}, fmt.Errorf("failed to resolve reporting users for %s", actor.ID)
	}
	view := m.authorizer.View(ctx, actor, model.ModuleLeaves)
	if len(visibility.Leaves([]model.Leave{leave}, actor, view, reports)) == 0 {
		return model.Leave{}, fmt.Errorf("decide leave %s: %w", id, access.ErrForbidden)
	}
	return leave, nil
}

func (m *Manager) saveDecision(ctx context.Context, leave model.Leave) error {
	if err := m.store.UpdateLeaveDecision(ctx, leave); err != nil {
		if errors.Is(err, database.ErrLeaveNotPending) {
			return fmt.Errorf("leave %s: %w", leave.ID, transition.ErrLeaveFinalized)
		}
		return fmt.Errorf("failed to save leave decision: %w", err)
	}
	return nil
}

func (m *Manager) record(ctx context.Context, actor model.Actor, action model.ActivityAction, details string) {
	m.recorder.Record(ctx, actor, model.ModuleLeaves, action, details)
	m.metrics.RecordMutation(ctx, model.ModuleLeaves, action)
}

package lead

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
	"realtycrm/internal/database"
	"realtycrm/internal/model"
	"realtycrm/internal/telemetry"
	"realtycrm/internal/transition"
	"realtycrm/internal/util"
	"realtycrm/internal/visibility"

	"github.com/google/uuid"
)

var (
	ErrEmptyNote   = errors.New("note text is required")
	ErrBudgetRange = errors.New("budget_max must not be below budget_min")
)

type Store interface {
	ListLeads(ctx context.Context, params database.ListLeadsParams) ([]model.Lead, error)
	GetLeadByID(ctx context.Context, id uuid.UUID) (model.Lead, error)
	CreateLead(ctx context.Context, params database.CreateLeadParams) (model.Lead, error)
	UpdateLeadByID(ctx context.Context, id uuid.UUID, params database.UpdateLeadParams) error
	AppendLeadNote(ctx context.Context, id uuid.UUID, note model.LeadNote) error
	DeleteLeadByID(ctx context.Context, id uuid.UUID) error
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
		logger:     logger.With("component", "lead_manager"),
		store:      store,
		authorizer: authorizer,
		recorder:   recorder,
		snapshots:  snapshots,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type ListFilter struct {
	Status model.LeadStatus
	Search string
	Page   database.Page
}

// List returns the leads page for the actor. Staff only ever receive their own leads.
func (m *Manager) List(ctx context.Context, actor model.Actor, filter ListFilter) access.Listing[model.Lead] {
	view := m.authorizer.View(ctx, actor, model.ModuleLeads)
	if !view.CanView {
		return access.NewListing[model.Lead](nil, view, false)
	}

	params := database.ListLeadsParams{Page: filter.Page}
	if view.IsStaffView && actor.Role == model.RoleStaff {
		params.CreatedBy = util.Some(actor.ID)
	}
	if filter.Status != "" {
		params.Status = util.Some(filter.Status)
	}
	if filter.Search != "" {
		params.Search = util.Some(filter.Search)
	}

	key := cache.ListKey(model.ModuleLeads, actor.ID, string(filter.Status), filter.Search, filter.Page.Key())
	res := cache.Fetch(ctx, m.snapshots, key, func(ctx context.Context) ([]model.Lead, error) {
		return m.store.ListLeads(ctx, params)
	})
	return access.NewListing(visibility.Leads(res.Items, actor, view), view, res.Degraded)
}

func (m *Manager) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (model.Lead, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleLeads, model.ActionView); err != nil {
		return model.Lead{}, err
	}
	lead, err := m.store.GetLeadByID(ctx, id)
	if err != nil {
		return model.Lead{}, fmt.Errorf("failed to get lead: %w", err)
	}
	view := m.authorizer.View(ctx, actor, model.ModuleLeads)
	if len(visibility.Leads([]model.Lead{lead}, actor, view)) == 0 {
		return model.Lead{}, fmt.Errorf("view lead %s: %w", id, access.ErrForbidden)
	}
	return lead, nil
}

type CreateInput struct {
	Name            string           `json:"name" validate:"required,max=200"`
	Phone           string           `json:"phone" validate:"required,max=32"`
	Email           string           `json:"email" validate:"omitempty,email"`
	PropertyType    string           `json:"property_type" validate:"max=100"`
	Location        string           `json:"location" validate:"max=200"`
	BudgetMin       int64            `json:"budget_min" validate:"gte=0"`
	BudgetMax       int64            `json:"budget_max" validate:"gte=0,gtefield=BudgetMin"`
	Bedrooms        int              `json:"bedrooms" validate:"gte=0"`
	Source          string           `json:"source" validate:"max=100"`
	Status          model.LeadStatus `json:"status" validate:"omitempty,lead_status"`
	FollowUpDate    *time.Time       `json:"follow_up_date"`
	Note            string           `json:"note" validate:"max=2000"`
	AssignedProject *uuid.UUID       `json:"assigned_project"`
}

func (m *Manager) Create(ctx context.Context, actor model.Actor, in CreateInput) (model.Lead, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleLeads, model.ActionCreate); err != nil {
		return model.Lead{}, err
	}

	status := in.Status
	if status == "" {
		status = model.LeadStatusPending
	}
	if !status.IsValid() {
		return model.Lead{}, fmt.Errorf("lead status %q: %w", status, transition.ErrInvalidStatus)
	}

	var notes []model.LeadNote
	if text := strings.TrimSpace(in.Note); text != "" {
		notes = append(notes, m.note(actor, text))
	}

	lead, err := m.store.CreateLead(ctx, database.CreateLeadParams{
		Name:            in.Name,
		Phone:           in.Phone,
		Email:           in.Email,
		PropertyType:    in.PropertyType,
		Location:        in.Location,
		BudgetMin:       in.BudgetMin,
		BudgetMax:       in.BudgetMax,
		Bedrooms:        in.Bedrooms,
		Source:          in.Source,
		Status:          status,
		FollowUpDate:    util.FromPtr(in.FollowUpDate),
		Notes:           notes,
		CreatedBy:       actor.ID,
		AssignedProject: util.FromPtr(in.AssignedProject),
	})
	if err != nil {
		return model.Lead{}, fmt.Errorf("failed to create lead: %w", err)
	}

	m.record(ctx, actor, model.ActivityCreated, fmt.Sprintf("Created lead %s", lead.Name))
	return lead, nil
}

// UpdateInput carries only the fields present in the request. ClearFollowUp and ClearProject
// remove the optional values.
type UpdateInput struct {
	Name            *string    `json:"name" validate:"omitempty,min=1,max=200"`
	Phone           *string    `json:"phone" validate:"omitempty,min=1,max=32"`
	Email           *string    `json:"email" validate:"omitempty,email"`
	PropertyType    *string    `json:"property_type" validate:"omitempty,max=100"`
	Location        *string    `json:"location" validate:"omitempty,max=200"`
	BudgetMin       *int64     `json:"budget_min" validate:"omitempty,gte=0"`
	BudgetMax       *int64     `json:"budget_max" validate:"omitempty,gte=0"`
	Bedrooms        *int       `json:"bedrooms" validate:"omitempty,gte=0"`
	Source          *string    `json:"source" validate:"omitempty,max=100"`
	FollowUpDate    *time.Time `json:"follow_up_date"`
	ClearFollowUp   bool       `json:"clear_follow_up"`
	AssignedProject *uuid.UUID `json:"assigned_project"`
	ClearProject    bool       `json:"clear_project"`
}

func (m *Manager) Update(ctx context.Context, actor model.Actor, id uuid.UUID, in UpdateInput) (model.Lead, error) {
	lead, err := m.loadForEdit(ctx, actor, id)
	if err != nil {
		return model.Lead{}, err
	}
	budgetMin, budgetMax := lead.BudgetMin, lead.BudgetMax
	if in.BudgetMin != nil {
		budgetMin = *in.BudgetMin
	}
	if in.BudgetMax != nil {
		budgetMax = *in.BudgetMax
	}
	if budgetMax < budgetMin {
		return model.Lead{}, fmt.Errorf("%d > %d: %w", budgetMin, budgetMax, ErrBudgetRange)
	}

	params := database.UpdateLeadParams{
		Name:         util.FromPtr(in.Name),
		Phone:        util.FromPtr(in.Phone),
		Email:        util.FromPtr(in.Email),
		PropertyType: util.FromPtr(in.PropertyType),
		Location:     util.FromPtr(in.Location),
		BudgetMin:    util.FromPtr(in.BudgetMin),
		BudgetMax:    util.FromPtr(in.BudgetMax),
		Bedrooms:     util.FromPtr(in.Bedrooms),
		Source:       util.FromPtr(in.Source),
	}
	switch {
	case in.ClearFollowUp:
		params.FollowUpDate = util.Some(util.None[time.Time]())
	case in.FollowUpDate != nil:
		params.FollowUpDate = util.Some(util.Some(*in.FollowUpDate))
	}
	switch {
	case in.ClearProject:
		params.AssignedProject = util.Some(util.None[uuid.UUID]())
	case in.AssignedProject != nil:
		params.AssignedProject = util.Some(util.Some(*in.AssignedProject))
	}

	if err := m.store.UpdateLeadByID(ctx, id, params); err != nil {
		return model.Lead{}, fmt.Errorf("failed to update lead: %w", err)
	}

	m.record(ctx, actor, model.ActivityUpdated, fmt.Sprintf("Updated lead %s", lead.Name))
	return m.store.GetLeadByID(ctx, id)
}

// SetStatus moves the lead to any of the lead statuses.
func (m *Manager) SetStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status model.LeadStatus) (model.Lead, error) {
	lead, err := m.loadForEdit(ctx, actor, id)
	if err != nil {
		return model.Lead{}, err
	}

	from := lead.Status
	updated, err := transition.SetLeadStatus(lead, status, m.now())
	if err != nil {
		return model.Lead{}, err
	}
	if err := m.store.UpdateLeadByID(ctx, id, database.UpdateLeadParams{Status: util.Some(updated.Status)}); err != nil {
		return model.Lead{}, fmt.Errorf("failed to update lead status: %w", err)
	}

	m.record(ctx, actor, model.ActivityUpdated, fmt.Sprintf("Changed status of lead %s from %s to %s", lead.Name, from, status))
	return updated, nil
}

func (m *Manager) AddNote(ctx context.Context, actor model.Actor, id uuid.UUID, text string) (model.Lead, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Lead{}, ErrEmptyNote
	}
	lead, err := m.loadForEdit(ctx, actor, id)
	if err != nil {
		return model.Lead{}, err
	}

	note := m.note(actor, text)
	if err := m.store.AppendLeadNote(ctx, id, note); err != nil {
		return model.Lead{}, fmt.Errorf("failed to add lead note: %w", err)
	}

	m.record(ctx, actor, model.ActivityUpdated, fmt.Sprintf("Added note to lead %s", lead.Name))
	lead.Notes = append(lead.Notes, note)
	lead.UpdatedAt = note.CreatedAt
	return lead, nil
}

func (m *Manager) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if err := m.authorizer.Require(ctx, actor, model.ModuleLeads, model.ActionDelete); err != nil {
		return err
	}
	lead, err := m.store.GetLeadByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get lead: %w", err)
	}
	if err := m.store.DeleteLeadByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}

	m.record(ctx, actor, model.ActivityDeleted, fmt.Sprintf("Deleted lead %s", lead.Name))
	return nil
}

// loadForEdit re-checks the edit permission and ownership before any change is applied.
func (m *Manager) loadForEdit(ctx context.Context, actor model.Actor, id uuid.UUID) (model.Lead, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleLeads, model.ActionEdit); err != nil {
		return model.Lead{}, err
	}
	lead, err := m.store.GetLeadByID(ctx, id)
	if err != nil {
		return model.Lead{}, fmt.Errorf("failed to get lead: %w", err)
	}
	if !access.Owns(actor, lead.CreatedBy) {
		return model.Lead{}, fmt.Errorf("edit lead %s: %w", id, access.ErrForbidden)
	}
	return lead, nil
}

func (m *Manager) note(actor model.Actor, text string) model.LeadNote {
	return model.LeadNote{Text: text, AuthorID: actor.ID, AuthorName: actor.Name, CreatedAt: m.now()}
}

func (m *Manager) record(ctx context.Context, actor model.Actor, action model.ActivityAction, details string) {
	m.recorder.Record(ctx, actor, model.ModuleLeads, action, details)
	m.metrics.RecordMutation(ctx, model.ModuleLeads, action)
}

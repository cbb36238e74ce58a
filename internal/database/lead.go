package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"realtycrm/internal/model"
	"realtycrm/internal/util"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const leadColumns = `id, name, phone, email, property_type, location, budget_min, budget_max, bedrooms, source, status, follow_up_date, notes, created_by, assigned_project, created_at, updated_at`

func scanLead(row pgx.Row) (model.Lead, error) {
	var lead model.Lead
	err := row.Scan(&lead.ID, &lead.Name, &lead.Phone, &lead.Email, &lead.PropertyType, &lead.Location, &lead.BudgetMin,
		&lead.BudgetMax, &lead.Bedrooms, &lead.Source, &lead.Status, &lead.FollowUpDate, &lead.Notes, &lead.CreatedBy,
		&lead.AssignedProject, &lead.CreatedAt, &lead.UpdatedAt)
	lead.Notes = nonNil(lead.Notes)
	return lead, err
}

type ListLeadsParams struct {
	CreatedBy util.Optional[uuid.UUID]
	Status    util.Optional[model.LeadStatus]
	Search    util.Optional[string]
	Page
}

func (db *Database) ListLeads(ctx context.Context, params ListLeadsParams) ([]model.Lead, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + leadColumns + ` FROM tbl_lead WHERE 1=1`)
	var args []any

	if params.CreatedBy.IsSet {
		args = append(args, params.CreatedBy.Val)
		fmt.Fprintf(&query, " AND created_by = $%d", len(args))
	}
	if params.Status.IsSet {
		args = append(args, params.Status.Val)
		fmt.Fprintf(&query, " AND status = $%d", len(args))
	}
	if params.Search.IsSet {
		args = append(args, "%"+params.Search.Val+"%")
		fmt.Fprintf(&query, " AND (name ILIKE $%d OR phone ILIKE $%d OR email ILIKE $%d)", len(args), len(args), len(args))
	}
	query.WriteString(" ORDER BY created_at DESC")
	params.Page.write(&query, &args)

	rows, err := db.Pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := []model.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate leads: %w", err)
	}
	return leads, nil
}

func (db *Database) GetLeadByID(ctx context.Context, id uuid.UUID) (model.Lead, error) {
	lead, err := scanLead(db.Pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM tbl_lead WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return lead, ErrLeadNotFound
		}
		return lead, fmt.Errorf("database: failed to scan lead: %w", err)
	}
	return lead, nil
}

type CreateLeadParams struct {
	Name            string
	Phone           string
	Email           string
	PropertyType    string
	Location        string
	BudgetMin       int64
	BudgetMax       int64
	Bedrooms        int
	Source          string
	Status          model.LeadStatus
	FollowUpDate    util.Optional[time.Time]
	Notes           []model.LeadNote
	CreatedBy       uuid.UUID
	AssignedProject util.Optional[uuid.UUID]
}

func (db *Database) CreateLead(ctx context.Context, params CreateLeadParams) (model.Lead, error) {
	now := time.Now().UTC()
	lead := model.Lead{
		ID:              uuid.New(),
		Name:            params.Name,
		Phone:           params.Phone,
		Email:           params.Email,
		PropertyType:    params.PropertyType,
		Location:        params.Location,
		BudgetMin:       params.BudgetMin,
		BudgetMax:       params.BudgetMax,
		Bedrooms:        params.Bedrooms,
		Source:          params.Source,
		Status:          params.Status,
		FollowUpDate:    params.FollowUpDate,
		Notes:           nonNil(params.Notes),
		CreatedBy:       params.CreatedBy,
		AssignedProject: params.AssignedProject,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	notes, err := jsonList(lead.Notes)
	if err != nil {
		return lead, fmt.Errorf("database: failed to encode lead notes: %w", err)
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_lead (`+leadColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		lead.ID, lead.Name, lead.Phone, lead.Email, lead.PropertyType, lead.Location, lead.BudgetMin, lead.BudgetMax,
		lead.Bedrooms, lead.Source, lead.Status, lead.FollowUpDate, notes, lead.CreatedBy, lead.AssignedProject,
		lead.CreatedAt, lead.UpdatedAt); err != nil {
		return lead, fmt.Errorf("database: failed to insert lead (name=%s): %w", lead.Name, err)
	}
	return lead, nil
}

type UpdateLeadParams struct {
	Name            util.Optional[string]
	Phone           util.Optional[string]
	Email           util.Optional[string]
	PropertyType    util.Optional[string]
	Location        util.Optional[string]
	BudgetMin       util.Optional[int64]
	BudgetMax       util.Optional[int64]
	Bedrooms        util.Optional[int]
	Source          util.Optional[string]
	Status          util.Optional[model.LeadStatus]
	FollowUpDate    util.Optional[util.Optional[time.Time]]
	AssignedProject util.Optional[util.Optional[uuid.UUID]]
}

func (db *Database) UpdateLeadByID(ctx context.Context, id uuid.UUID, params UpdateLeadParams) error {
	update := newUpdate("tbl_lead")

	if params.Name.IsSet {
		update.set("name", params.Name.Val)
	}
	if params.Phone.IsSet {
		update.set("phone", params.Phone.Val)
	}
	if params.Email.IsSet {
		update.set("email", params.Email.Val)
	}
	if params.PropertyType.IsSet {
		update.set("property_type", params.PropertyType.Val)
	}
	if params.Location.IsSet {
		update.set("location", params.Location.Val)
	}
	if params.BudgetMin.IsSet {
		update.set("budget_min", params.BudgetMin.Val)
	}
	if params.BudgetMax.IsSet {
		update.set("budget_max", params.BudgetMax.Val)
	}
	if params.Bedrooms.IsSet {
		update.set("bedrooms", params.Bedrooms.Val)
	}
	if params.Source.IsSet {
		update.set("source", params.Source.Val)
	}
	if params.Status.IsSet {
		update.set("status", params.Status.Val)
	}
	if params.FollowUpDate.IsSet {
		update.set("follow_up_date", params.FollowUpDate.Val)
	}
	if params.AssignedProject.IsSet {
		update.set("assigned_project", params.AssignedProject.Val)
	}

	query, args := update.where(time.Now().UTC(), id)
	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("database: failed to update lead (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// AppendLeadNote adds a note at the end of the lead's note list in a single statement.
func (db *Database) AppendLeadNote(ctx context.Context, id uuid.UUID, note model.LeadNote) error {
	encoded, err := jsonList([]model.LeadNote{note})
	if err != nil {
		return fmt.Errorf("database: failed to encode lead note: %w", err)
	}
	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_lead SET notes = notes || $1::jsonb, updated_at = $2 WHERE id = $3`,
		encoded, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("database: failed to append lead note (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func (db *Database) DeleteLeadByID(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM tbl_lead WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database: failed to delete lead (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

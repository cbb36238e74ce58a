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

const leaveColumns = `id, user_id, user_name, user_role, type, start_date, end_date, reason, status, approved_by, approved_at, created_at, updated_at`

func scanLeave(row pgx.Row) (model.Leave, error) {
	var leave model.Leave
	err := row.Scan(&leave.ID, &leave.UserID, &leave.UserName, &leave.UserRole, &leave.Type, &leave.StartDate,
		&leave.EndDate, &leave.Reason, &leave.Status, &leave.ApprovedBy, &leave.ApprovedAt, &leave.CreatedAt, &leave.UpdatedAt)
	return leave, err
}

type ListLeavesParams struct {
	UserID util.Optional[uuid.UUID]
	// UserIDs limits the list to requests filed by any of the given users.
	UserIDs util.Optional[[]uuid.UUID]
	Status  util.Optional[model.LeaveStatus]
	Page
}

func (db *Database) ListLeaves(ctx context.Context, params ListLeavesParams) ([]model.Leave, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + leaveColumns + ` FROM tbl_leave WHERE 1=1`)
	var args []any

	if params.UserID.IsSet {
		args = append(args, params.UserID.Val)
		fmt.Fprintf(&query, " AND user_id = $%d", len(args))
	}
	if params.UserIDs.IsSet {
		args = append(args, params.UserIDs.Val)
		fmt.Fprintf(&query, " AND user_id = ANY($%d::uuid[])", len(args))
	}
	if params.Status.IsSet {
		args = append(args, params.Status.Val)
		fmt.Fprintf(&query, " AND status = $%d", len(args))
	}
	query.WriteString(" ORDER BY start_date DESC")
	params.Page.write(&query, &args)

	rows, err := db.Pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list leaves: %w", err)
	}
	defer rows.Close()

	leaves := []model.Leave{}
	for rows.Next() {
		leave, err := scanLeave(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan leave: %w", err)
		}
		leaves = append(leaves, leave)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate leaves: %w", err)
	}
	return leaves, nil
}

func (db *Database) GetLeaveByID(ctx context.Context, id uuid.UUID) (model.Leave, error) {
	leave, err := scanLeave(db.Pool.QueryRow(ctx, `SELECT `+leaveColumns+` FROM tbl_leave WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return leave, ErrLeaveNotFound
		}
		return leave, fmt.Errorf("database: failed to scan leave: %w", err)
	}
	return leave, nil
}

type CreateLeaveParams struct {
	UserID    uuid.UUID
	UserName  string
	UserRole  model.Role
	Type      model.LeaveType
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

// CreateLeave inserts a new request. Requests always start pending.
func (db *Database) CreateLeave(ctx context.Context, params CreateLeaveParams) (model.Leave, error) {
	now := time.Now().UTC()
	leave := model.Leave{
		ID:        uuid.New(),
		UserID:    params.UserID,
		UserName:  params.UserName,
		UserRole:  params.UserRole,
		Type:      params.Type,
		StartDate: params.StartDate,
		EndDate:   params.EndDate,
		Reason:    params.Reason,
		Status:    model.LeaveStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_leave (`+leaveColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		leave.ID, leave.UserID, leave.UserName, leave.UserRole, leave.Type, leave.StartDate, leave.EndDate, leave.Reason,
		leave.Status, leave.ApprovedBy, leave.ApprovedAt, leave.CreatedAt, leave.UpdatedAt); err != nil {
		return leave, fmt.Errorf("database: failed to insert leave (user_id=%s): %w", leave.UserID, err)
	}
	return leave, nil
}

// UpdateLeaveDecision persists an approval or rejection. Only a pending row is updated, so a
// concurrent second decision reports ErrLeaveNotPending.
func (db *Database) UpdateLeaveDecision(ctx context.Context, leave model.Leave) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_leave SET status = $1, approved_by = $2, approved_at = $3, updated_at = $4 WHERE id = $5 AND status = $6`,
		leave.Status, leave.ApprovedBy, leave.ApprovedAt, leave.UpdatedAt, leave.ID, model.LeaveStatusPending)
	if err != nil {
		return fmt.Errorf("database: failed to update leave decision (id=%s): %w", leave.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaveNotPending
	}
	return nil
}

func (db *Database) DeleteLeaveByID(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM tbl_leave WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database: failed to delete leave (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaveNotFound
	}
	return nil
}

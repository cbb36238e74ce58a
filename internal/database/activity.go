package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"realtycrm/internal/model"
	"realtycrm/internal/util"

	"github.com/google/uuid"
)

type CreateActivityLogParams struct {
	UserID   uuid.UUID
	UserName string
	UserRole model.Role
	Module   model.Module
	Action   model.ActivityAction
	Details  string
}

func (db *Database) CreateActivityLog(ctx context.Context, params CreateActivityLogParams) (model.ActivityLog, error) {
	entry := model.ActivityLog{
		ID:        uuid.New(),
		UserID:    params.UserID,
		UserName:  params.UserName,
		UserRole:  params.UserRole,
		Module:    params.Module,
		Action:    params.Action,
		Details:   params.Details,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_activity_log (id, user_id, user_name, user_role, module, action, details, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.UserID, entry.UserName, entry.UserRole, entry.Module, entry.Action, entry.Details, entry.CreatedAt); err != nil {
		return entry, fmt.Errorf("database: failed to insert activity log (module=%s, action=%s): %w", entry.Module, entry.Action, err)
	}
	return entry, nil
}

type ListActivityLogsParams struct {
	UserID util.Optional[uuid.UUID]
	Module util.Optional[model.Module]
	Since  util.Optional[time.Time]
	Page
}

func (db *Database) ListActivityLogs(ctx context.Context, params ListActivityLogsParams) ([]model.ActivityLog, error) {
	var query strings.Builder
	query.WriteString(`SELECT id, user_id, user_name, user_role, module, action, details, created_at FROM tbl_activity_log WHERE 1=1`)
	var args []any

	if params.UserID.IsSet {
		args = append(args, params.UserID.Val)
		fmt.Fprintf(&query, " AND user_id = $%d", len(args))
	}
	if params.Module.IsSet {
		args = append(args, params.Module.Val)
		fmt.Fprintf(&query, " AND module = $%d", len(args))
	}
	if params.Since.IsSet {
		args = append(args, params.Since.Val)
		fmt.Fprintf(&query, " AND created_at >= $%d", len(args))
	}
	query.WriteString(" ORDER BY created_at DESC")
	params.Page.write(&query, &args)

	rows, err := db.Pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list activity logs: %w", err)
	}
	defer rows.Close()

	entries := []model.ActivityLog{}
	for rows.Next() {
		var e model.ActivityLog
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.UserRole, &e.Module, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan activity log: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate activity logs: %w", err)
	}
	return entries, nil
}

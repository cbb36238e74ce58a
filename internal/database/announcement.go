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

const announcementColumns = `id, title, message, priority, target_roles, created_by, created_at, expires_at, is_active`

func scanAnnouncement(row pgx.Row) (model.Announcement, error) {
	var a model.Announcement
	var roles []string
	err := row.Scan(&a.ID, &a.Title, &a.Message, &a.Priority, &roles, &a.CreatedBy, &a.CreatedAt, &a.ExpiresAt, &a.IsActive)
	a.TargetRoles = make([]model.Role, 0, len(roles))
	for _, r := range roles {
		a.TargetRoles = append(a.TargetRoles, model.Role(r))
	}
	return a, err
}

func roleStrings(roles []model.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

type ListAnnouncementsParams struct {
	IsActive util.Optional[bool]
	Page
}

func (db *Database) ListAnnouncements(ctx context.Context, params ListAnnouncementsParams) ([]model.Announcement, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + announcementColumns + ` FROM tbl_announcement WHERE 1=1`)
	var args []any

	if params.IsActive.IsSet {
		args = append(args, params.IsActive.Val)
		fmt.Fprintf(&query, " AND is_active = $%d", len(args))
	}
	query.WriteString(" ORDER BY created_at DESC")
	params.Page.write(&query, &args)

	rows, err := db.Pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list announcements: %w", err)
	}
	defer rows.Close()

	announcements := []model.Announcement{}
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan announcement: %w", err)
		}
		announcements = append(announcements, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate announcements: %w", err)
	}
	return announcements, nil
}

func (db *Database) GetAnnouncementByID(ctx context.Context, id uuid.UUID) (model.Announcement, error) {
	a, err := scanAnnouncement(db.Pool.QueryRow(ctx, `SELECT `+announcementColumns+` FROM tbl_announcement WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return a, ErrAnnouncementNotFound
		}
		return a, fmt.Errorf("database: failed to scan announcement: %w", err)
	}
	return a, nil
}

type CreateAnnouncementParams struct {
	Title       string
	Message     string
	Priority    model.Priority
	TargetRoles []model.Role
	CreatedBy   uuid.UUID
	ExpiresAt   util.Optional[time.Time]
}

// CreateAnnouncement inserts an active announcement.
func (db *Database) CreateAnnouncement(ctx context.Context, params CreateAnnouncementParams) (model.Announcement, error) {
	a := model.Announcement{
		ID:          uuid.New(),
		Title:       params.Title,
		Message:     params.Message,
		Priority:    params.Priority,
		TargetRoles: params.TargetRoles,
		CreatedBy:   params.CreatedBy,
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   params.ExpiresAt,
		IsActive:    true,
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_announcement (`+announcementColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Title, a.Message, a.Priority, roleStrings(a.TargetRoles), a.CreatedBy, a.CreatedAt, a.ExpiresAt, a.IsActive); err != nil {
		return a, fmt.Errorf("database: failed to insert announcement (title=%s): %w", a.Title, err)
	}
	return a, nil
}

func (db *Database) SetAnnouncementActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_announcement SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("database: failed to update announcement (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAnnouncementNotFound
	}
	return nil
}

func (db *Database) DeleteAnnouncementByID(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM tbl_announcement WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database: failed to delete announcement (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAnnouncementNotFound
	}
	return nil
}

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
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `id, login_id, name, email, phone, role, status, permissions, manager_id, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(&user.ID, &user.LoginID, &user.Name, &user.Email, &user.Phone, &user.Role, &user.Status,
		&user.Permissions, &user.ManagerID, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	user.Permissions = nonNil(user.Permissions)
	return user, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type ListUsersParams struct {
	Role      util.Optional[model.Role]
	Status    util.Optional[model.UserStatus]
	ManagerID util.Optional[uuid.UUID]
	Page
}

// ListUsers lists users ordered by name. Password hashes are read but never serialised.
func (db *Database) ListUsers(ctx context.Context, params ListUsersParams) ([]model.User, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + userColumns + ` FROM tbl_user WHERE 1=1`)
	var args []any

	if params.Role.IsSet {
		args = append(args, params.Role.Val)
		fmt.Fprintf(&query, " AND role = $%d", len(args))
	}
	if params.Status.IsSet {
		args = append(args, params.Status.Val)
		fmt.Fprintf(&query, " AND status = $%d", len(args))
	}
	if params.ManagerID.IsSet {
		args = append(args, params.ManagerID.Val)
		fmt.Fprintf(&query, " AND manager_id = $%d", len(args))
	}
	query.WriteString(" ORDER BY name ASC")
	params.Page.write(&query, &args)

	rows, err := db.Pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate users: %w", err)
	}
	return users, nil
}

// ListReportIDs returns the ids of users whose manager is managerID.
func (db *Database) ListReportIDs(ctx context.Context, managerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id FROM tbl_user WHERE manager_id = $1`, managerID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list reports (manager_id=%s): %w", managerID, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("database: failed to collect reports (manager_id=%s): %w", managerID, err)
	}
	return ids, nil
}

type CreateUserParams struct {
	LoginID      string
	Name         string
	Email        string
	Phone        string
	Role         model.Role
	Permissions  []model.Permission
	ManagerID    util.Optional[uuid.UUID]
	PasswordHash string
}

func (db *Database) CreateUser(ctx context.Context, params CreateUserParams) (model.User, error) {
	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.New(),
		LoginID:      params.LoginID,
		Name:         params.Name,
		Email:        params.Email,
		Phone:        params.Phone,
		Role:         params.Role,
		Status:       model.UserStatusActive,
		Permissions:  nonNil(params.Permissions),
		ManagerID:    params.ManagerID,
		PasswordHash: params.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	permissions, err := jsonList(user.Permissions)
	if err != nil {
		return user, fmt.Errorf("database: failed to encode permissions: %w", err)
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_user (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		user.ID, user.LoginID, user.Name, user.Email, user.Phone, user.Role, user.Status, permissions, user.ManagerID,
		user.PasswordHash, user.CreatedAt, user.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return user, ErrLoginIDTaken
		}
		return user, fmt.Errorf("database: failed to insert user (login_id=%s): %w", user.LoginID, err)
	}
	return user, nil
}

func (db *Database) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return db.GetUser(ctx, GetUserParams{ID: util.Some(id)})
}

func (db *Database) GetUserByLoginID(ctx context.Context, loginID string) (model.User, error) {
	return db.GetUser(ctx, GetUserParams{LoginID: util.Some(loginID)})
}

type GetUserParams struct {
	ID      util.Optional[uuid.UUID]
	LoginID util.Optional[string]
}

func (db *Database) GetUser(ctx context.Context, params GetUserParams) (model.User, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + userColumns + ` FROM tbl_user WHERE 1=1`)
	var args []any

	if params.ID.IsSet {
		args = append(args, params.ID.Val)
		fmt.Fprintf(&query, " AND id = $%d", len(args))
	}
	if params.LoginID.IsSet {
		args = append(args, params.LoginID.Val)
		fmt.Fprintf(&query, " AND login_id = $%d", len(args))
	}

	user, err := scanUser(db.Pool.QueryRow(ctx, query.String(), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, ErrUserNotFound
		}
		return user, fmt.Errorf("database: failed to scan user: %w", err)
	}
	return user, nil
}

type UpdateUserParams struct {
	Name         util.Optional[string]
	Email        util.Optional[string]
	Phone        util.Optional[string]
	Role         util.Optional[model.Role]
	Status       util.Optional[model.UserStatus]
	Permissions  util.Optional[[]model.Permission]
	ManagerID    util.Optional[util.Optional[uuid.UUID]]
	PasswordHash util.Optional[string]
}

func (db *Database) UpdateUserByID(ctx context.Context, id uuid.UUID, params UpdateUserParams) error {
	update := newUpdate("tbl_user")

	if params.Name.IsSet {
		update.set("name", params.Name.Val)
	}
	if params.Email.IsSet {
		update.set("email", params.Email.Val)
	}
	if params.Phone.IsSet {
		update.set("phone", params.Phone.Val)
	}
	if params.Role.IsSet {
		update.set("role", params.Role.Val)
	}
	if params.Status.IsSet {
		update.set("status", params.Status.Val)
	}
	if params.Permissions.IsSet {
		permissions, err := jsonList(params.Permissions.Val)
		if err != nil {
			return fmt.Errorf("database: failed to encode permissions: %w", err)
		}
		update.set("permissions", permissions)
	}
	if params.ManagerID.IsSet {
		update.set("manager_id", params.ManagerID.Val)
	}
	if params.PasswordHash.IsSet {
		update.set("password_hash", params.PasswordHash.Val)
	}

	query, args := update.where(time.Now().UTC(), id)
	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("database: failed to update user (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (db *Database) DeleteUserByID(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM tbl_user WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database: failed to delete user (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

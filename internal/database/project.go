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

const projectColumns = `id, name, description, location, developer, price_min, price_max, status, photos, amenities, created_by, created_at, updated_at`

func scanProject(row pgx.Row) (model.Project, error) {
	var project model.Project
	err := row.Scan(&project.ID, &project.Name, &project.Description, &project.Location, &project.Developer,
		&project.PriceMin, &project.PriceMax, &project.Status, &project.Photos, &project.Amenities, &project.CreatedBy,
		&project.CreatedAt, &project.UpdatedAt)
	project.Photos = nonNil(project.Photos)
	project.Amenities = nonNil(project.Amenities)
	return project, err
}

type ListProjectsParams struct {
	Status util.Optional[model.ProjectStatus]
	Page
}

func (db *Database) ListProjects(ctx context.Context, params ListProjectsParams) ([]model.Project, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + projectColumns + ` FROM tbl_project WHERE 1=1`)
	var args []any

	if params.Status.IsSet {
		args = append(args, params.Status.Val)
		fmt.Fprintf(&query, " AND status = $%d", len(args))
	}
	query.WriteString(" ORDER BY created_at DESC")
	params.Page.write(&query, &args)

	rows, err := db.Pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate projects: %w", err)
	}
	return projects, nil
}

func (db *Database) GetProjectByID(ctx context.Context, id uuid.UUID) (model.Project, error) {
	project, err := scanProject(db.Pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM tbl_project WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project, ErrProjectNotFound
		}
		return project, fmt.Errorf("database: failed to scan project: %w", err)
	}
	return project, nil
}

type CreateProjectParams struct {
	Name        string
	Description string
	Location    string
	Developer   string
	PriceMin    int64
	PriceMax    int64
	Status      model.ProjectStatus
	Amenities   []string
	CreatedBy   uuid.UUID
}

func (db *Database) CreateProject(ctx context.Context, params CreateProjectParams) (model.Project, error) {
	now := time.Now().UTC()
	project := model.Project{
		ID:          uuid.New(),
		Name:        params.Name,
		Description: params.Description,
		Location:    params.Location,
		Developer:   params.Developer,
		PriceMin:    params.PriceMin,
		PriceMax:    params.PriceMax,
		Status:      params.Status,
		Photos:      []string{},
		Amenities:   nonNil(params.Amenities),
		CreatedBy:   params.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	amenities, err := jsonList(project.Amenities)
	if err != nil {
		return project, fmt.Errorf("database: failed to encode amenities: %w", err)
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_project (`+projectColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '[]'::jsonb, $9, $10, $11, $12)`,
		project.ID, project.Name, project.Description, project.Location, project.Developer, project.PriceMin,
		project.PriceMax, project.Status, amenities, project.CreatedBy, project.CreatedAt, project.UpdatedAt); err != nil {
		return project, fmt.Errorf("database: failed to insert project (name=%s): %w", project.Name, err)
	}
	return project, nil
}

type UpdateProjectParams struct {
	Name        util.Optional[string]
	Description util.Optional[string]
	Location    util.Optional[string]
	Developer   util.Optional[string]
	PriceMin    util.Optional[int64]
	PriceMax    util.Optional[int64]
	Status      util.Optional[model.ProjectStatus]
	Amenities   util.Optional[[]string]
}

func (db *Database) UpdateProjectByID(ctx context.Context, id uuid.UUID, params UpdateProjectParams) error {
	update := newUpdate("tbl_project")

	if params.Name.IsSet {
		update.set("name", params.Name.Val)
	}
	if params.Description.IsSet {
		update.set("description", params.Description.Val)
	}
	if params.Location.IsSet {
		update.set("location", params.Location.Val)
	}
	if params.Developer.IsSet {
		update.set("developer", params.Developer.Val)
	}
	if params.PriceMin.IsSet {
		update.set("price_min", params.PriceMin.Val)
	}
	if params.PriceMax.IsSet {
		update.set("price_max", params.PriceMax.Val)
	}
	if params.Status.IsSet {
		update.set("status", params.Status.Val)
	}
	if params.Amenities.IsSet {
		amenities, err := jsonList(params.Amenities.Val)
		if err != nil {
			return fmt.Errorf("database: failed to encode amenities: %w", err)
		}
		update.set("amenities", amenities)
	}

	query, args := update.where(time.Now().UTC(), id)
	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("database: failed to update project (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (db *Database) AppendProjectPhoto(ctx context.Context, id uuid.UUID, key string) error {
	encoded, err := jsonList([]string{key})
	if err != nil {
		return fmt.Errorf("database: failed to encode photo key: %w", err)
	}
	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_project SET photos = photos || $1::jsonb, updated_at = $2 WHERE id = $3`,
		encoded, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("database: failed to append project photo (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (db *Database) DeleteProjectByID(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM tbl_project WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database: failed to delete project (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

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

const taskColumns = `id, lead_id, lead_name, title, status, assigned_to, due_date, notes, attachments, created_by, created_at, updated_at`

func scanTask(row pgx.Row) (model.Task, error) {
	var task model.Task
	err := row.Scan(&task.ID, &task.LeadID, &task.LeadName, &task.Title, &task.Status, &task.AssignedTo, &task.DueDate,
		&task.Notes, &task.Attachments, &task.CreatedBy, &task.CreatedAt, &task.UpdatedAt)
	task.Notes = nonNil(task.Notes)
	task.Attachments = nonNil(task.Attachments)
	return task, err
}

type ListTasksParams struct {
	AssignedTo util.Optional[uuid.UUID]
	LeadID     util.Optional[uuid.UUID]
	Status     util.Optional[model.TaskStatus]
	Page
}

func (db *Database) ListTasks(ctx context.Context, params ListTasksParams) ([]model.Task, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + taskColumns + ` FROM tbl_task WHERE 1=1`)
	var args []any

	if params.AssignedTo.IsSet {
		args = append(args, params.AssignedTo.Val)
		fmt.Fprintf(&query, " AND assigned_to = $%d", len(args))
	}
	if params.LeadID.IsSet {
		args = append(args, params.LeadID.Val)
		fmt.Fprintf(&query, " AND lead_id = $%d", len(args))
	}
	if params.Status.IsSet {
		args = append(args, params.Status.Val)
		fmt.Fprintf(&query, " AND status = $%d", len(args))
	}
	query.WriteString(" ORDER BY due_date ASC NULLS LAST, created_at DESC")
	params.Page.write(&query, &args)

	rows, err := db.Pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

func (db *Database) GetTaskByID(ctx context.Context, id uuid.UUID) (model.Task, error) {
	task, err := scanTask(db.Pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tbl_task WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task, ErrTaskNotFound
		}
		return task, fmt.Errorf("database: failed to scan task: %w", err)
	}
	return task, nil
}

type CreateTaskParams struct {
	LeadID     uuid.UUID
	LeadName   string
	Title      string
	Status     model.TaskStatus
	AssignedTo uuid.UUID
	DueDate    util.Optional[time.Time]
	Notes      []model.TaskNote
	CreatedBy  uuid.UUID
}

func (db *Database) CreateTask(ctx context.Context, params CreateTaskParams) (model.Task, error) {
	now := time.Now().UTC()
	task := model.Task{
		ID:          uuid.New(),
		LeadID:      params.LeadID,
		LeadName:    params.LeadName,
		Title:       params.Title,
		Status:      params.Status,
		AssignedTo:  params.AssignedTo,
		DueDate:     params.DueDate,
		Notes:       nonNil(params.Notes),
		Attachments: []model.Attachment{},
		CreatedBy:   params.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	notes, err := jsonList(task.Notes)
	if err != nil {
		return task, fmt.Errorf("database: failed to encode task notes: %w", err)
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_task (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '[]'::jsonb, $9, $10, $11)`,
		task.ID, task.LeadID, task.LeadName, task.Title, task.Status, task.AssignedTo, task.DueDate, notes,
		task.CreatedBy, task.CreatedAt, task.UpdatedAt); err != nil {
		return task, fmt.Errorf("database: failed to insert task (title=%s): %w", task.Title, err)
	}
	return task, nil
}

type UpdateTaskParams struct {
	Title      util.Optional[string]
	Status     util.Optional[model.TaskStatus]
	AssignedTo util.Optional[uuid.UUID]
	DueDate    util.Optional[util.Optional[time.Time]]
}

func (db *Database) UpdateTaskByID(ctx context.Context, id uuid.UUID, params UpdateTaskParams) error {
	update := newUpdate("tbl_task")

	if params.Title.IsSet {
		update.set("title", params.Title.Val)
	}
	if params.Status.IsSet {
		update.set("status", params.Status.Val)
	}
	if params.AssignedTo.IsSet {
		update.set("assigned_to", params.AssignedTo.Val)
	}
	if params.DueDate.IsSet {
		update.set("due_date", params.DueDate.Val)
	}

	query, args := update.where(time.Now().UTC(), id)
	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("database: failed to update task (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (db *Database) AppendTaskNote(ctx context.Context, id uuid.UUID, note model.TaskNote) error {
	encoded, err := jsonList([]model.TaskNote{note})
	if err != nil {
		return fmt.Errorf("database: failed to encode task note: %w", err)
	}
	return db.appendTaskList(ctx, "notes", id, encoded)
}

func (db *Database) AppendTaskAttachment(ctx context.Context, id uuid.UUID, attachment model.Attachment) error {
	encoded, err := jsonList([]model.Attachment{attachment})
	if err != nil {
		return fmt.Errorf("database: failed to encode task attachment: %w", err)
	}
	return db.appendTaskList(ctx, "attachments", id, encoded)
}

func (db *Database) appendTaskList(ctx context.Context, column string, id uuid.UUID, encoded []byte) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_task SET `+column+` = `+column+` || $1::jsonb, updated_at = $2 WHERE id = $3`,
		encoded, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("database: failed to append task %s (id=%s): %w", column, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (db *Database) DeleteTaskByID(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM tbl_task WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database: failed to delete task (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

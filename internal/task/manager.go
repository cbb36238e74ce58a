package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"realtycrm/internal/access"
	"realtycrm/internal/audit"
	"realtycrm/internal/cache"
	"realtycrm/internal/database"
	"realtycrm/internal/model"
	"realtycrm/internal/storage"
	"realtycrm/internal/telemetry"
	"realtycrm/internal/transition"
	"realtycrm/internal/util"
	"realtycrm/internal/visibility"

	"github.com/google/uuid"
)

var (
	ErrEmptyNote          = errors.New("note text is required")
	ErrFileTooLarge       = errors.New("file exceeds the upload limit")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrInvalidAssignee    = errors.New("assignee must be an existing active user")
)

type Store interface {
	ListTasks(ctx context.Context, params database.ListTasksParams) ([]model.Task, error)
	GetTaskByID(ctx context.Context, id uuid.UUID) (model.Task, error)
	CreateTask(ctx context.Context, params database.CreateTaskParams) (model.Task, error)
	UpdateTaskByID(ctx context.Context, id uuid.UUID, params database.UpdateTaskParams) error
	AppendTaskNote(ctx context.Context, id uuid.UUID, note model.TaskNote) error
	AppendTaskAttachment(ctx context.Context, id uuid.UUID, attachment model.Attachment) error
	DeleteTaskByID(ctx context.Context, id uuid.UUID) error
	GetLeadByID(ctx context.Context, id uuid.UUID) (model.Lead, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)
}

// Files is the part of storage.Storage attachments use.
type Files interface {
	Store(ctx context.Context, prefix, filename string, content io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	GetURL(ctx context.Context, key string, expiration time.Duration) (string, error)
}

type Manager struct {
	logger      *slog.Logger
	store       Store
	files       Files
	authorizer  *access.Authorizer
	recorder    audit.Recorder
	snapshots   *cache.Snapshots
	metrics     *telemetry.Metrics
	maxFileSize int64
	urlExpiry   time.Duration
	now         func() time.Time
}

type Options struct {
	MaxFileSize int64
	URLExpiry   time.Duration
}

func NewManager(logger *slog.Logger, store Store, files Files, authorizer *access.Authorizer, recorder audit.Recorder, snapshots *cache.Snapshots, metrics *telemetry.Metrics, opts Options) *Manager {
	return &Manager{
		logger:      logger.With("component", "task_manager"),
		store:       store,
		files:       files,
		authorizer:  authorizer,
		recorder:    recorder,
		snapshots:   snapshots,
		metrics:     metrics,
		maxFileSize: opts.MaxFileSize,
		urlExpiry:   opts.URLExpiry,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type ListFilter struct {
	LeadID uuid.UUID
	Status model.TaskStatus
	Page   database.Page
}

// List returns the tasks page. Staff only receive tasks assigned to them.
func (m *Manager) List(ctx context.Context, actor model.Actor, filter ListFilter) access.Listing[model.Task] {
	view := m.authorizer.View(ctx, actor, model.ModuleTasks)
	if !view.CanView {
		return access.NewListing[model.Task](nil, view, false)
	}

	params := database.ListTasksParams{Page: filter.Page}
	if view.IsStaffView && actor.Role == model.RoleStaff {
		params.AssignedTo = util.Some(actor.ID)
	}
	if filter.LeadID != uuid.Nil {
		params.LeadID = util.Some(filter.LeadID)
	}
	if filter.Status != "" {
		params.Status = util.Some(filter.Status)
	}

	var lead string
	if filter.LeadID != uuid.Nil {
		lead = filter.LeadID.String()
	}
	key := cache.ListKey(model.ModuleTasks, actor.ID, lead, string(filter.Status), filter.Page.Key())
	res := cache.Fetch(ctx, m.snapshots, key, func(ctx context.Context) ([]model.Task, error) {
		return m.store.ListTasks(ctx, params)
	})
	return access.NewListing(visibility.Tasks(res.Items, actor, view), view, res.Degraded)
}

func (m *Manager) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (model.Task, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleTasks, model.ActionView); err != nil {
		return model.Task{}, err
	}
	task, err := m.store.GetTaskByID(ctx, id)
	if err != nil {
		return model.Task{}, fmt.Errorf("failed to get task: %w", err)
	}
	view := m.authorizer.View(ctx, actor, model.ModuleTasks)
	if len(visibility.Tasks([]model.Task{task}, actor, view)) == 0 {
		return model.Task{}, fmt.Errorf("view task %s: %w", id, access.ErrForbidden)
	}
	return task, nil
}

type CreateInput struct {
	LeadID     uuid.UUID        `json:"lead_id" validate:"required"`
	Title      string           `json:"title" validate:"required,max=200"`
	Status     model.TaskStatus `json:"status" validate:"omitempty,task_status"`
	AssignedTo *uuid.UUID       `json:"assigned_to"`
	DueDate    *time.Time       `json:"due_date"`
	Note       string           `json:"note" validate:"max=2000"`
}

// Create derives a task from an existing lead. Staff may only create tasks from their own leads
// and the task is always assigned to them.
func (m *Manager) Create(ctx context.Context, actor model.Actor, in CreateInput) (model.Task, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleTasks, model.ActionCreate); err != nil {
		return model.Task{}, err
	}

	status := in.Status
	if status == "" {
		status = model.TaskStatusPending
	}
	if !status.IsValid() {
		return model.Task{}, fmt.Errorf("task status %q: %w", status, transition.ErrInvalidStatus)
	}

	lead, err := m.store.GetLeadByID(ctx, in.LeadID)
	if err != nil {
		return model.Task{}, fmt.Errorf("failed to get lead for task: %w", err)
	}
	if !access.Owns(actor, lead.CreatedBy) {
		return model.Task{}, fmt.Errorf("create task from lead %s: %w", lead.ID, access.ErrForbidden)
	}

	assignee := actor.ID
	if in.AssignedTo != nil && actor.Role != model.RoleStaff && *in.AssignedTo != actor.ID {
		if err := m.checkAssignee(ctx, *in.AssignedTo); err != nil {
			return model.Task{}, err
		}
		assignee = *in.AssignedTo
	}

	var notes []model.TaskNote
	if text := strings.TrimSpace(in.Note); text != "" {
		notes = append(notes, m.note(actor, text))
	}

	task, err := m.store.CreateTask(ctx, database.CreateTaskParams{
		LeadID:     lead.ID,
		LeadName:   lead.Name,
		Title:      in.Title,
		Status:     status,
		AssignedTo: assignee,
		DueDate:    util.FromPtr(in.DueDate),
		Notes:      notes,
		CreatedBy:  actor.ID,
	})
	if err != nil {
		return model.Task{}, fmt.Errorf("failed to create task: %w", err)
	}

	m.record(ctx, actor, model.ActivityCreated, fmt.Sprintf("Created task %q for lead %s", task.Title, lead.Name))
	return task, nil
}

type UpdateInput struct {
	Title        *string    `json:"title" validate:"omitempty,min=1,max=200"`
	AssignedTo   *uuid.UUID `json:"assigned_to"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
}

func (m *Manager) Update(ctx context.Context, actor model.Actor, id uuid.UUID, in UpdateInput) (model.Task, error) {
	task, err := m.loadForEdit(ctx, actor, id)
	if err != nil {
		return model.Task{}, err
	}
	if in.AssignedTo != nil && *in.AssignedTo != task.AssignedTo {
		if actor.Role == model.RoleStaff {
			return model.Task{}, fmt.Errorf("reassign task %s: %w", id, access.ErrForbidden)
		}
		if err := m.checkAssignee(ctx, *in.AssignedTo); err != nil {
			return model.Task{}, err
		}
	}

	params := database.UpdateTaskParams{
		Title:      util.FromPtr(in.Title),
		AssignedTo: util.FromPtr(in.AssignedTo),
	}
	switch {
	case in.ClearDueDate:
		params.DueDate = util.Some(util.None[time.Time]())
	case in.DueDate != nil:
		params.DueDate = util.Some(util.Some(*in.DueDate))
	}

	if err := m.store.UpdateTaskByID(ctx, id, params); err != nil {
		return model.Task{}, fmt.Errorf("failed to update task: %w", err)
	}

	m.record(ctx, actor, model.ActivityUpdated, fmt.Sprintf("Updated task %q", task.Title))
	return m.store.GetTaskByID(ctx, id)
}

// SetStatus applies any of the task statuses. Re-applying the current status writes nothing
// but is still logged.
func (m *Manager) SetStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status model.TaskStatus) (model.Task, error) {
	task, err := m.loadForEdit(ctx, actor, id)
	if err != nil {
		return model.Task{}, err
	}

	from := task.Status
	updated, changed, err := transition.SetTaskStatus(task, status, m.now())
	if err != nil {
		return model.Task{}, err
	}
	if changed {
		if err := m.store.UpdateTaskByID(ctx, id, database.UpdateTaskParams{Status: util.Some(status)}); err != nil {
			return model.Task{}, fmt.Errorf("failed to update task status: %w", err)
		}
	}

	m.record(ctx, actor, model.ActivityUpdated, fmt.Sprintf("Changed status of task %q from %s to %s", task.Title, from, status))
	return updated, nil
}

func (m *Manager) AddNote(ctx context.Context, actor model.Actor, id uuid.UUID, text string) (model.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Task{}, ErrEmptyNote
	}
	task, err := m.loadForEdit(ctx, actor, id)
	if err != nil {
		return model.Task{}, err
	}

	note := m.note(actor, text)
	if err := m.store.AppendTaskNote(ctx, id, note); err != nil {
		return model.Task{}, fmt.Errorf("failed to add task note: %w", err)
	}

	m.record(ctx, actor, model.ActivityUpdated, fmt.Sprintf("Added note to task %q", task.Title))
	task.Notes = append(task.Notes, note)
	task.UpdatedAt = note.CreatedAt
	return task, nil
}

type Upload struct {
	Name    string
	Size    int64
	Content io.Reader
}

// AddAttachment stores the file and appends it to the task. When the task update fails the
// stored file is removed again.
func (m *Manager) AddAttachment(ctx context.Context, actor model.Actor, id uuid.UUID, upload Upload) (model.Attachment, error) {
	task, err := m.loadForEdit(ctx, actor, id)
	if err != nil {
		return model.Attachment{}, err
	}
	if m.maxFileSize > 0 && upload.Size > m.maxFileSize {
		return model.Attachment{}, fmt.Errorf("%s (%d bytes): %w", upload.Name, upload.Size, ErrFileTooLarge)
	}

	contentType, content, err := storage.DetectContentType(upload.Content)
	if err != nil {
		return model.Attachment{}, err
	}
	key, err := m.files.Store(ctx, "tasks/"+id.String(), upload.Name, content, contentType)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("failed to store attachment: %w", err)
	}

	attachment := model.Attachment{
		Name:        upload.Name,
		Key:         key,
		ContentType: contentType,
		Size:        upload.Size,
		UploadedBy:  actor.ID,
		UploadedAt:  m.now(),
	}
	if err := m.store.AppendTaskAttachment(ctx, id, attachment); err != nil {
		if delErr := m.files.Delete(ctx, key); delErr != nil {
			m.logger.WarnContext(ctx, "failed to remove orphaned attachment", "key", key, "error", delErr)
		}
		return model.Attachment{}, fmt.Errorf("failed to attach file to task: %w", err)
	}

	m.record(ctx, actor, model.ActivityUpdated, fmt.Sprintf("Attached %s to task %q", upload.Name, task.Title))
	return attachment, nil
}

// AttachmentURL returns a link for one of the task's attachments.
func (m *Manager) AttachmentURL(ctx context.Context, actor model.Actor, id uuid.UUID, key string) (string, error) {
	task, err := m.Get(ctx, actor, id)
	if err != nil {
		return "", err
	}
	for _, a := range task.Attachments {
		if a.Key == key {
			return m.files.GetURL(ctx, key, m.urlExpiry)
		}
	}
	return "", ErrAttachmentNotFound
}

func (m *Manager) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if err := m.authorizer.Require(ctx, actor, model.ModuleTasks, model.ActionDelete); err != nil {
		return err
	}
	task, err := m.store.GetTaskByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}
	if err := m.store.DeleteTaskByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	for _, a := range task.Attachments {
		if err := m.files.Delete(ctx, a.Key); err != nil && !errors.Is(err, storage.ErrFileNotFound) {
			m.logger.WarnContext(ctx, "failed to delete task attachment", "task_id", id, "key", a.Key, "error", err)
		}
	}

	m.record(ctx, actor, model.ActivityDeleted, fmt.Sprintf("Deleted task %q", task.Title))
	return nil
}

func (m *Manager) loadForEdit(ctx context.Context, actor model.Actor, id uuid.UUID) (model.Task, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleTasks, model.ActionEdit); err != nil {
		return model.Task{}, err
	}
	task, err := m.store.GetTaskByID(ctx, id)
	if err != nil {
		return model.Task{}, fmt.Errorf("failed to get task: %w", err)
	}
	if !access.Owns(actor, task.AssignedTo) {
		return model.Task{}, fmt.Errorf("edit task %s: %w", id, access.ErrForbidden)
	}
	return task, nil
}

func (m *Manager) note(actor model.Actor, text string) model.TaskNote {
	return model.TaskNote{Text: text, AuthorID: actor.ID, AuthorName: actor.Name, CreatedAt: m.now()}
}

func (m *Manager) checkAssignee(ctx context.Context, id uuid.UUID) error {
	user, err := m.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return fmt.Errorf("user %s: %w", id, ErrInvalidAssignee)
		}
		return fmt.Errorf("failed to get assignee: %w", err)
	}
	if !user.IsActive() {
		return fmt.Errorf("user %s is inactive: %w", id, ErrInvalidAssignee)
	}
	return nil
}

func (m *Manager) record(ctx context.Context, actor model.Actor, action model.ActivityAction, details string) {
	m.recorder.Record(ctx, actor, model.ModuleTasks, action, details)
	m.metrics.RecordMutation(ctx, model.ModuleTasks, action)
}

package model

import (
	"slices"
	"time"

	"realtycrm/internal/util"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusVisit       TaskStatus = "visit"
	TaskStatusFamilyVisit TaskStatus = "family_visit"
	TaskStatusPending     TaskStatus = "pending"
	TaskStatusCompleted   TaskStatus = "completed"
	TaskStatusRejected    TaskStatus = "rejected"
)

var TaskStatuses = []TaskStatus{TaskStatusVisit, TaskStatusFamilyVisit, TaskStatusPending, TaskStatusCompleted, TaskStatusRejected}

func (s TaskStatus) IsValid() bool {
	return slices.Contains(TaskStatuses, s)
}

type TaskNote struct {
	Text       string    `json:"text"`
	AuthorID   uuid.UUID `json:"author_id"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

type Attachment struct {
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedBy  uuid.UUID `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Task is a follow-up activity derived from a lead. LeadID is a weak reference.
type Task struct {
	ID          uuid.UUID                `json:"id"`
	LeadID      uuid.UUID                `json:"lead_id"`
	LeadName    string                   `json:"lead_name"`
	Title       string                   `json:"title"`
	Status      TaskStatus               `json:"status"`
	AssignedTo  uuid.UUID                `json:"assigned_to"`
	DueDate     util.Optional[time.Time] `json:"due_date"`
	Notes       []TaskNote               `json:"notes"`
	Attachments []Attachment             `json:"attachments"`
	CreatedBy   uuid.UUID                `json:"created_by"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

type ActivityAction string

const (
	ActivityCreated  ActivityAction = "created"
	ActivityUpdated  ActivityAction = "updated"
	ActivityApproved ActivityAction = "approved"
	ActivityRejected ActivityAction = "rejected"
	ActivityDeleted  ActivityAction = "deleted"
)

// ActivityLog is append-only. UserName and UserRole are copied from the actor at write time.
type ActivityLog struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	UserName  string         `json:"user_name"`
	UserRole  Role           `json:"user_role"`
	Module    Module         `json:"module"`
	Action    ActivityAction `json:"action"`
	Details   string         `json:"details"`
	CreatedAt time.Time      `json:"created_at"`
}

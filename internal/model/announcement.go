package model

import (
	"slices"
	"time"

	"realtycrm/internal/util"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// AudienceRoles are the roles an announcement can be broadcast to. Admins manage
// announcements but are never a banner audience.
var AudienceRoles = []Role{RoleManager, RoleStaff}

type Announcement struct {
	ID          uuid.UUID                `json:"id"`
	Title       string                   `json:"title"`
	Message     string                   `json:"message"`
	Priority    Priority                 `json:"priority"`
	TargetRoles []Role                   `json:"target_roles"`
	CreatedBy   uuid.UUID                `json:"created_by"`
	CreatedAt   time.Time                `json:"created_at"`
	ExpiresAt   util.Optional[time.Time] `json:"expires_at"`
	IsActive    bool                     `json:"is_active"`
}

func (a Announcement) Targets(role Role) bool {
	return slices.Contains(a.TargetRoles, role)
}

func (a Announcement) Expired(now time.Time) bool {
	return a.ExpiresAt.IsSet && !a.ExpiresAt.Val.After(now)
}

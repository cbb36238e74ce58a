package model

import (
	"slices"
	"time"

	"realtycrm/internal/util"

	"github.com/google/uuid"
)

type LeaveType string

const (
	LeaveTypeCasual LeaveType = "casual"
	LeaveTypeSick   LeaveType = "sick"
	LeaveTypeAnnual LeaveType = "annual"
	LeaveTypeUnpaid LeaveType = "unpaid"
)

var LeaveTypes = []LeaveType{LeaveTypeCasual, LeaveTypeSick, LeaveTypeAnnual, LeaveTypeUnpaid}

func (t LeaveType) IsValid() bool {
	return slices.Contains(LeaveTypes, t)
}

type LeaveStatus string

const (
	LeaveStatusPending  LeaveStatus = "pending"
	LeaveStatusApproved LeaveStatus = "approved"
	LeaveStatusRejected LeaveStatus = "rejected"
)

func (s LeaveStatus) IsFinal() bool {
	return s == LeaveStatusApproved || s == LeaveStatusRejected
}

// Leave keeps a snapshot of the requester so history survives later renames or role changes.
type Leave struct {
	ID         uuid.UUID                `json:"id"`
	UserID     uuid.UUID                `json:"user_id"`
	UserName   string                   `json:"user_name"`
	UserRole   Role                     `json:"user_role"`
	Type       LeaveType                `json:"type"`
	StartDate  time.Time                `json:"start_date"`
	EndDate    time.Time                `json:"end_date"`
	Reason     string                   `json:"reason"`
	Status     LeaveStatus              `json:"status"`
	ApprovedBy util.Optional[uuid.UUID] `json:"approved_by"`
	ApprovedAt util.Optional[time.Time] `json:"approved_at"`
	CreatedAt  time.Time                `json:"created_at"`
	UpdatedAt  time.Time                `json:"updated_at"`
}

// Days is the inclusive number of calendar days covered by the request.
func (l Leave) Days() int {
	start := l.StartDate.Truncate(24 * time.Hour)
	end := l.EndDate.Truncate(24 * time.Hour)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

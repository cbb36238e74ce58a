package model

import (
	"slices"
	"time"

	"realtycrm/internal/util"

	"github.com/google/uuid"
)

// LeadStatus is a free-form tag: any value may follow any other.
type LeadStatus string

const (
	LeadStatusInterested    LeadStatus = "interested"
	LeadStatusNotInterested LeadStatus = "not_interested"
	LeadStatusPending       LeadStatus = "pending"
	LeadStatusReminder      LeadStatus = "reminder"
)

var LeadStatuses = []LeadStatus{LeadStatusInterested, LeadStatusNotInterested, LeadStatusPending, LeadStatusReminder}

func (s LeadStatus) IsValid() bool {
	return slices.Contains(LeadStatuses, s)
}

type LeadNote struct {
	Text       string    `json:"text"`
	AuthorID   uuid.UUID `json:"author_id"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

type Lead struct {
	ID              uuid.UUID                `json:"id"`
	Name            string                   `json:"name"`
	Phone           string                   `json:"phone"`
	Email           string                   `json:"email"`
	PropertyType    string                   `json:"property_type"`
	Location        string                   `json:"location"`
	BudgetMin       int64                    `json:"budget_min"`
	BudgetMax       int64                    `json:"budget_max"`
	Bedrooms        int                      `json:"bedrooms"`
	Source          string                   `json:"source"`
	Status          LeadStatus               `json:"status"`
	FollowUpDate    util.Optional[time.Time] `json:"follow_up_date"`
	Notes           []LeadNote               `json:"notes"`
	CreatedBy       uuid.UUID                `json:"created_by"`
	AssignedProject util.Optional[uuid.UUID] `json:"assigned_project"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// FollowUpDue reports whether the lead has a follow-up date at or before now.
func (l Lead) FollowUpDue(now time.Time) bool {
	return l.FollowUpDate.IsSet && !l.FollowUpDate.Val.After(now)
}

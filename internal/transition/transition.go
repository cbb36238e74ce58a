// Package transition holds the allowed status changes for leads, tasks, leave requests and
// announcements, and the side effects each change carries.
package transition

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"realtycrm/internal/model"
	"realtycrm/internal/util"
)

var (
	ErrInvalidStatus  = errors.New("transition: invalid status")
	ErrLeaveFinalized = errors.New("transition: leave request already decided")
)

// Lead and task statuses are free-form: any valid value may follow any other.

func SetLeadStatus(lead model.Lead, status model.LeadStatus, now time.Time) (model.Lead, error) {
	if !status.IsValid() {
		return lead, fmt.Errorf("lead status %q: %w", status, ErrInvalidStatus)
	}
	lead.Status = status
	lead.UpdatedAt = now
	return lead, nil
}

// SetTaskStatus reports whether the record changed. Setting the current status again leaves
// the task untouched.
func SetTaskStatus(task model.Task, status model.TaskStatus, now time.Time) (model.Task, bool, error) {
	if !status.IsValid() {
		return task, false, fmt.Errorf("task status %q: %w", status, ErrInvalidStatus)
	}
	if task.Status == status {
		return task, false, nil
	}
	task.Status = status
	task.UpdatedAt = now
	return task, true, nil
}

var leaveTransitions = map[model.LeaveStatus][]model.LeaveStatus{
	model.LeaveStatusPending: {model.LeaveStatusApproved, model.LeaveStatusRejected},
}

func CanTransitionLeave(from, to model.LeaveStatus) bool {
	return slices.Contains(leaveTransitions[from], to)
}

func ApproveLeave(leave model.Leave, approver model.Actor, now time.Time) (model.Leave, error) {
	return decideLeave(leave, model.LeaveStatusApproved, approver, now)
}

// RejectLeave stamps the approver fields the same way approval does. The rejection reason is
// not stored on the record.
func RejectLeave(leave model.Leave, approver model.Actor, now time.Time) (model.Leave, error) {
	return decideLeave(leave, model.LeaveStatusRejected, approver, now)
}

func decideLeave(leave model.Leave, to model.LeaveStatus, approver model.Actor, now time.Time) (model.Leave, error) {
	if !CanTransitionLeave(leave.Status, to) {
		if leave.Status.IsFinal() {
			return leave, fmt.Errorf("leave %s is %s: %w", leave.ID, leave.Status, ErrLeaveFinalized)
		}
		return leave, fmt.Errorf("leave status %q: %w", leave.Status, ErrInvalidStatus)
	}
	leave.Status = to
	leave.ApprovedBy = util.Some(approver.ID)
	leave.ApprovedAt = util.Some(now)
	leave.UpdatedAt = now
	return leave, nil
}

// ToggleAnnouncement flips isActive only.
func ToggleAnnouncement(a model.Announcement) model.Announcement {
	a.IsActive = !a.IsActive
	return a
}

// Package visibility narrows record collections to what a viewer may see on a given page.
// Every function is pure: no store access, no clock reads, no logging.
package visibility

import (
	"slices"
	"time"

	"realtycrm/internal/access"
	"realtycrm/internal/model"

	"github.com/google/uuid"
)

// Filter returns the elements satisfying keep. The result is never nil so it encodes as [].
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Leads restricts a staff view to leads the viewer created. Manager views see everything.
func Leads(leads []model.Lead, viewer model.Actor, cfg access.ViewConfig) []model.Lead {
	if !cfg.CanView {
		return []model.Lead{}
	}
	if !(cfg.IsStaffView && viewer.Role == model.RoleStaff) {
		return Filter(leads, func(model.Lead) bool { return true })
	}
	return Filter(leads, func(l model.Lead) bool { return l.CreatedBy == viewer.ID })
}

// Tasks restricts a staff view to tasks assigned to the viewer.
func Tasks(tasks []model.Task, viewer model.Actor, cfg access.ViewConfig) []model.Task {
	if !cfg.CanView {
		return []model.Task{}
	}
	if !(cfg.IsStaffView && viewer.Role == model.RoleStaff) {
		return Filter(tasks, func(model.Task) bool { return true })
	}
	return Filter(tasks, func(t model.Task) bool { return t.AssignedTo == viewer.ID })
}

// Reports is the set of user ids reporting to a manager. A nil Reports means reporting links
// are not in use and managers see every leave request.
type Reports map[uuid.UUID]struct{}

func NewReports(ids ...uuid.UUID) Reports {
	r := make(Reports, len(ids))
	for _, id := range ids {
		r[id] = struct{}{}
	}
	return r
}

func (r Reports) Has(id uuid.UUID) bool {
	_, ok := r[id]
	return ok
}

// IDs returns the report ids in no particular order.
func (r Reports) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	return ids
}

// Leaves applies the pending-only flag and the role scope: staff see their own requests,
// managers see all requests or, when reports is non-nil, their own plus their reports'.
func Leaves(leaves []model.Leave, viewer model.Actor, cfg access.ViewConfig, reports Reports) []model.Leave {
	if !cfg.CanView {
		return []model.Leave{}
	}
	return Filter(leaves, func(l model.Leave) bool {
		if cfg.ShowOnlyPending && l.Status != model.LeaveStatusPending {
			return false
		}
		switch viewer.Role {
		case model.RoleStaff:
			return l.UserID == viewer.ID
		case model.RoleManager:
			return reports == nil || l.UserID == viewer.ID || reports.Has(l.UserID)
		case model.RoleAdmin:
			return true
		}
		return false
	})
}

// Projects are visible in full to anyone with view access; status narrows when given.
func Projects(projects []model.Project, cfg access.ViewConfig, statuses ...model.ProjectStatus) []model.Project {
	if !cfg.CanView {
		return []model.Project{}
	}
	return Filter(projects, func(p model.Project) bool {
		return len(statuses) == 0 || slices.Contains(statuses, p.Status)
	})
}

// Users hides inactive accounts from pages flagged ShowOnlyActive.
func Users(users []model.User, cfg access.ViewConfig) []model.User {
	if !cfg.CanView {
		return []model.User{}
	}
	return Filter(users, func(u model.User) bool {
		return !cfg.ShowOnlyActive || u.IsActive()
	})
}

// Dismissed reports whether an announcement was dismissed in the current session.
type Dismissed func(id uuid.UUID) bool

// AnnouncementVisible holds iff the announcement is active, targets the role, has not been
// dismissed and has not expired.
func AnnouncementVisible(a model.Announcement, role model.Role, dismissed Dismissed, now time.Time) bool {
	if !a.IsActive || !a.Targets(role) || a.Expired(now) {
		return false
	}
	return dismissed == nil || !dismissed(a.ID)
}

// Announcements returns the banner set for a role, newest first.
func Announcements(announcements []model.Announcement, role model.Role, dismissed Dismissed, now time.Time) []model.Announcement {
	visible := Filter(announcements, func(a model.Announcement) bool {
		return AnnouncementVisible(a, role, dismissed, now)
	})
	slices.SortStableFunc(visible, func(a, b model.Announcement) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return visible
}

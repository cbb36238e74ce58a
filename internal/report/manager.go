// Package report builds the dashboard summary from the records the viewer can see.
package report

import (
	"context"
	"log/slog"
	"time"

	"realtycrm/internal/access"
	"realtycrm/internal/lead"
	"realtycrm/internal/leave"
	"realtycrm/internal/model"
	"realtycrm/internal/project"
	"realtycrm/internal/task"
)

type LeadLister interface {
	List(ctx context.Context, actor model.Actor, filter lead.ListFilter) access.Listing[model.Lead]
}

type TaskLister interface {
	List(ctx context.Context, actor model.Actor, filter task.ListFilter) access.Listing[model.Task]
}

type LeaveLister interface {
	List(ctx context.Context, actor model.Actor, filter leave.ListFilter) access.Listing[model.Leave]
}

type ProjectLister interface {
	List(ctx context.Context, actor model.Actor, filter project.ListFilter) access.Listing[model.Project]
}

type Manager struct {
	logger     *slog.Logger
	authorizer *access.Authorizer
	leads      LeadLister
	tasks      TaskLister
	leaves     LeaveLister
	projects   ProjectLister
	now        func() time.Time
}

func NewManager(logger *slog.Logger, authorizer *access.Authorizer, leads LeadLister, tasks TaskLister, leaves LeaveLister, projects ProjectLister) *Manager {
	return &Manager{
		logger:     logger.With("component", "report_manager"),
		authorizer: authorizer,
		leads:      leads,
		tasks:      tasks,
		leaves:     leaves,
		projects:   projects,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type Summary struct {
	LeadsByStatus  map[model.LeadStatus]int `json:"leads_by_status"`
	TasksByStatus  map[model.TaskStatus]int `json:"tasks_by_status"`
	TotalLeads     int                      `json:"total_leads"`
	TotalTasks     int                      `json:"total_tasks"`
	FollowUpsDue   int                      `json:"follow_ups_due"`
	PendingLeaves  int                      `json:"pending_leaves"`
	ActiveProjects int                      `json:"active_projects"`
	Degraded       bool                     `json:"degraded"`
	GeneratedAt    time.Time                `json:"generated_at"`
}

// Summary counts over the same lists the actor would get page by page, so a figure never
// includes a record the actor cannot open.
func (m *Manager) Summary(ctx context.Context, actor model.Actor) (Summary, error) {
	if err := m.authorizer.Require(ctx, actor, model.ModuleReports, model.ActionView); err != nil {
		return Summary{}, err
	}

	now := m.now()
	s := Summary{
		LeadsByStatus: make(map[model.LeadStatus]int, len(model.LeadStatuses)),
		TasksByStatus: make(map[model.TaskStatus]int, len(model.TaskStatuses)),
		GeneratedAt:   now,
	}
	for _, st := range model.LeadStatuses {
		s.LeadsByStatus[st] = 0
	}
	for _, st := range model.TaskStatuses {
		s.TasksByStatus[st] = 0
	}

	leads := m.leads.List(ctx, actor, lead.ListFilter{})
	for _, l := range leads.Items {
		s.LeadsByStatus[l.Status]++
		if l.FollowUpDue(now) {
			s.FollowUpsDue++
		}
	}
	s.TotalLeads = len(leads.Items)

	tasks := m.tasks.List(ctx, actor, task.ListFilter{})
	for _, t := range tasks.Items {
		s.TasksByStatus[t.Status]++
	}
	s.TotalTasks = len(tasks.Items)

	leaves := m.leaves.List(ctx, actor, leave.ListFilter{PendingOnly: true})
	s.PendingLeaves = len(leaves.Items)

	projects := m.projects.List(ctx, actor, project.ListFilter{Status: model.ProjectStatusOngoing})
	s.ActiveProjects = len(projects.Items)

	s.Degraded = leads.Degraded || tasks.Degraded || leaves.Degraded || projects.Degraded
	if s.Degraded {
		m.logger.WarnContext(ctx, "summary built from degraded reads", "user_id", actor.ID)
	}
	return s, nil
}

package report

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"realtycrm/internal/access"
	"realtycrm/internal/lead"
	"realtycrm/internal/leave"
	"realtycrm/internal/model"
	"realtycrm/internal/project"
	"realtycrm/internal/task"
	"realtycrm/internal/util"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLeads []model.Lead

func (f fakeLeads) List(_ context.Context, actor model.Actor, _ lead.ListFilter) access.Listing[model.Lead] {
	return access.NewListing([]model.Lead(f), access.ViewFor(actor.Role, model.ModuleLeads), false)
}

type fakeTasks []model.Task

func (f fakeTasks) List(_ context.Context, actor model.Actor, _ task.ListFilter) access.Listing[model.Task] {
	return access.NewListing([]model.Task(f), access.ViewFor(actor.Role, model.ModuleTasks), true)
}

type fakeLeaves []model.Leave

func (f fakeLeaves) List(_ context.Context, actor model.Actor, filter leave.ListFilter) access.Listing[model.Leave] {
	var out []model.Leave
	for _, l := range f {
		if !filter.PendingOnly || l.Status == model.LeaveStatusPending {
			out = append(out, l)
		}
	}
	return access.NewListing(out, access.ViewFor(actor.Role, model.ModuleLeaves), false)
}

type fakeProjects []model.Project

func (f fakeProjects) List(_ context.Context, actor model.Actor, filter project.ListFilter) access.Listing[model.Project] {
	var out []model.Project
	for _, p := range f {
		if p.Status == filter.Status {
			out = append(out, p)
		}
	}
	return access.NewListing(out, access.ViewFor(actor.Role, model.ModuleProjects), false)
}

func TestSummary(t *testing.T) {
	now := time.Date(2024, 8, 15, 10, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authorizer := access.NewAuthorizer(logger, nil)

	m := NewManager(logger, &authorizer,
		fakeLeads{
			{Status: model.LeadStatusInterested, FollowUpDate: util.Some(now.Add(-time.Hour))},
			{Status: model.LeadStatusInterested},
			{Status: model.LeadStatusReminder, FollowUpDate: util.Some(now.Add(time.Hour))},
		},
		fakeTasks{{Status: model.TaskStatusVisit}},
		fakeLeaves{{Status: model.LeaveStatusPending}, {Status: model.LeaveStatusApproved}},
		fakeProjects{{Status: model.ProjectStatusOngoing}, {Status: model.ProjectStatusCompleted}},
	)
	m.now = func() time.Time { return now }

	s, err := m.Summary(context.Background(), model.Actor{ID: uuid.New(), Role: model.RoleManager})
	require.NoError(t, err)

	assert.Equal(t, 3, s.TotalLeads)
	assert.Equal(t, 2, s.LeadsByStatus[model.LeadStatusInterested])
	assert.Equal(t, 0, s.LeadsByStatus[model.LeadStatusPending])
	assert.Equal(t, 1, s.FollowUpsDue)
	assert.Equal(t, 1, s.TasksByStatus[model.TaskStatusVisit])
	assert.Equal(t, 1, s.PendingLeaves)
	assert.Equal(t, 1, s.ActiveProjects)
	assert.True(t, s.Degraded)
}

func TestSummary_StaffForbidden(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authorizer := access.NewAuthorizer(logger, nil)
	m := NewManager(logger, &authorizer, fakeLeads{}, fakeTasks{}, fakeLeaves{}, fakeProjects{})

	_, err := m.Summary(context.Background(), model.Actor{ID: uuid.New(), Role: model.RoleStaff})

	assert.ErrorIs(t, err, access.ErrForbidden)
}

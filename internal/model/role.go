package model

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

var Roles = []Role{RoleAdmin, RoleManager, RoleStaff}

func (r Role) IsValid() bool {
	return slices.Contains(Roles, r)
}

func (r Role) String() string {
	return string(r)
}

func (r *Role) Scan(value any) error {
	if str, ok := value.(string); ok {
		*r = Role(str)
		return nil
	}
	return fmt.Errorf("cannot scan %T into Role", value)
}

// Module is a functional area of the CRM and the unit of permission granularity.
type Module string

const (
	ModuleLeads         Module = "leads"
	ModuleTasks         Module = "tasks"
	ModuleProjects      Module = "projects"
	ModuleLeaves        Module = "leaves"
	ModuleUsers         Module = "users"
	ModuleReports       Module = "reports"
	ModuleAnnouncements Module = "announcements"
	ModuleActivity      Module = "activity"
	ModuleSettings      Module = "settings"
)

var Modules = []Module{
	ModuleLeads, ModuleTasks, ModuleProjects, ModuleLeaves, ModuleUsers,
	ModuleReports, ModuleAnnouncements, ModuleActivity, ModuleSettings,
}

func (m Module) IsValid() bool {
	return slices.Contains(Modules, m)
}

type Action string

const (
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionEdit    Action = "edit"
	ActionApprove Action = "approve"
	ActionDelete  Action = "delete"
)

var Actions = []Action{ActionView, ActionCreate, ActionEdit, ActionApprove, ActionDelete}

func (a Action) IsValid() bool {
	return slices.Contains(Actions, a)
}

// Permission grants a set of actions on one module to a single user.
type Permission struct {
	Module  Module   `json:"module"`
	Actions []Action `json:"actions"`
}

func (p Permission) Allows(action Action) bool {
	return slices.Contains(p.Actions, action)
}

// Actor is the identity performing a request, as handed over by the session layer.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role Role      `json:"role"`
}

func (a Actor) IsZero() bool {
	return a.ID == uuid.Nil
}

// Package access decides which role may perform which action on which module, and builds the
// per-page configuration that list views are rendered with.
package access

import (
	"errors"

	"realtycrm/internal/model"

	"github.com/google/uuid"
)

var ErrForbidden = errors.New("access: action not permitted")

// CanPerform is the static role gate.
//
// Admins may do everything. Managers monitor: they can view every module, request their own
// leave and approve or reject leave, nothing else. Staff work their own leads, tasks and leave
// requests and can only look at projects and the user directory.
func CanPerform(role model.Role, module model.Module, action model.Action) bool {
	if !module.IsValid() || !action.IsValid() {
		return false
	}

	switch role {
	case model.RoleAdmin:
		return true
	case model.RoleManager:
		switch action {
		case model.ActionView:
			return true
		case model.ActionCreate, model.ActionApprove:
			return module == model.ModuleLeaves
		}
		return false
	case model.RoleStaff:
		switch module {
		case model.ModuleLeads, model.ModuleTasks, model.ModuleLeaves:
			return action == model.ActionView || action == model.ActionCreate || action == model.ActionEdit
		case model.ModuleProjects, model.ModuleUsers:
			return action == model.ActionView
		}
		return false
	}
	return false
}

// Owns reports whether the actor may mutate a record owned by ownerID. Staff are limited to
// their own records; other roles are limited by the role gate alone.
func Owns(actor model.Actor, ownerID uuid.UUID) bool {
	if actor.Role != model.RoleStaff {
		return true
	}
	return actor.ID == ownerID
}

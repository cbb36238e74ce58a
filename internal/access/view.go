package access

import "realtycrm/internal/model"

// ViewConfig is the role-specific configuration a list page hands to the shared list logic.
type ViewConfig struct {
	Module          model.Module `json:"module"`
	CanView         bool         `json:"can_view"`
	CanCreate       bool         `json:"can_create"`
	CanEdit         bool         `json:"can_edit"`
	CanApprove      bool         `json:"can_approve"`
	CanDelete       bool         `json:"can_delete"`
	IsStaffView     bool         `json:"is_staff_view"`
	IsManagerView   bool         `json:"is_manager_view"`
	ShowOnlyPending bool         `json:"show_only_pending"`
	ShowOnlyActive  bool         `json:"show_only_active"`
}

// ViewFor selects the page configuration for a role on a module.
func ViewFor(role model.Role, module model.Module) ViewConfig {
	cfg := ViewConfig{
		Module:     module,
		CanView:    CanPerform(role, module, model.ActionView),
		CanCreate:  CanPerform(role, module, model.ActionCreate),
		CanEdit:    CanPerform(role, module, model.ActionEdit),
		CanApprove: CanPerform(role, module, model.ActionApprove),
		CanDelete:  CanPerform(role, module, model.ActionDelete),
	}

	switch role {
	case model.RoleStaff:
		cfg.IsStaffView = true
		cfg.ShowOnlyActive = module == model.ModuleUsers
	case model.RoleManager:
		switch module {
		case model.ModuleLeads, model.ModuleTasks, model.ModuleProjects:
			cfg.IsManagerView = true
			cfg.CanCreate = false
			cfg.CanEdit = false
			cfg.CanDelete = false
		}
	}

	return cfg
}

// PendingOnly returns a copy restricted to pending records, used by approval queues.
func (v ViewConfig) PendingOnly() ViewConfig {
	v.ShowOnlyPending = true
	return v
}

// Allows maps an action onto the configuration flags.
func (v ViewConfig) Allows(action model.Action) bool {
	switch action {
	case model.ActionView:
		return v.CanView
	case model.ActionCreate:
		return v.CanCreate
	case model.ActionEdit:
		return v.CanEdit
	case model.ActionApprove:
		return v.CanApprove
	case model.ActionDelete:
		return v.CanDelete
	}
	return false
}

// Controls lists the mutating actions the page may render. Denied actions are left out
// entirely rather than being returned as disabled.
func (v ViewConfig) Controls() []model.Action {
	controls := []model.Action{}
	for _, action := range []model.Action{model.ActionCreate, model.ActionEdit, model.ActionApprove, model.ActionDelete} {
		if v.Allows(action) {
			controls = append(controls, action)
		}
	}
	return controls
}

// Listing is what a list page receives: the visible records and the controls the viewer may use.
// Degraded is set when the records came from a fallback because the store read failed.
type Listing[T any] struct {
	Items    []T            `json:"items"`
	View     ViewConfig     `json:"view"`
	Controls []model.Action `json:"controls"`
	Degraded bool           `json:"degraded"`
}

func NewListing[T any](items []T, view ViewConfig, degraded bool) Listing[T] {
	if items == nil {
		items = []T{}
	}
	return Listing[T]{Items: items, View: view, Controls: view.Controls(), Degraded: degraded}
}

// Package workflow holds the pure rules of the DMT approval pipeline:
// the role-based permission resolver and the stage transition table.
// Nothing in here touches the database.
package workflow

import "backend/internal/model"

// PermissionSet is the fixed set of per-section edit and action
// permissions for one (role, stage, status) combination. The first four
// booleans map to the form sections; the rest gate record actions.
type PermissionSet struct {
	GeneralInfo       bool `json:"general_info"`
	DefectDescription bool `json:"defect_description"`
	ProcessAnalysis   bool `json:"process_analysis"`
	Engineering       bool `json:"engineering"`
	CanClose          bool `json:"can_close"`
	CanReopen         bool `json:"can_reopen"`
	CanPrint          bool `json:"can_print"`
}

func allPermissions() PermissionSet {
	return PermissionSet{
		GeneralInfo:       true,
		DefectDescription: true,
		ProcessAnalysis:   true,
		Engineering:       true,
		CanClose:          true,
		CanReopen:         true,
		CanPrint:          true,
	}
}

// ResolvePermissions computes the permission set for a role acting on a
// record in the given workflow stage and open/closed status.
//
// Precedence, first match wins:
//  1. Admin and Inspector override everything at every stage.
//  2. A closed record is print-only for every other role.
//  3. On an open record, Supervisor edits the first two sections;
//     Engineer edits all four and may close. Closing never implies
//     reopening: only the override roles reopen.
//  4. Every other role is fully read-only, print included.
func ResolvePermissions(role model.Role, stage model.WorkflowStage, status model.Status) PermissionSet {
	if role == model.RoleAdmin || role == model.RoleInspector {
		return allPermissions()
	}

	if status == model.StatusClosed {
		return PermissionSet{CanPrint: true}
	}

	switch role {
	case model.RoleSupervisor:
		return PermissionSet{
			GeneralInfo:       true,
			DefectDescription: true,
			CanPrint:          true,
		}
	case model.RoleEngineer:
		return PermissionSet{
			GeneralInfo:       true,
			DefectDescription: true,
			ProcessAnalysis:   true,
			Engineering:       true,
			CanClose:          true,
			CanPrint:          true,
		}
	default:
		// Manager, Operator, Viewer: read-only, explicitly denied.
		return PermissionSet{}
	}
}

// CanClose reports whether a role may close a record at all, independent
// of record state. Closing requires engineering sign-off or an override
// role.
func CanClose(role model.Role) bool {
	switch role {
	case model.RoleAdmin, model.RoleInspector, model.RoleEngineer:
		return true
	default:
		return false
	}
}

// CanReopen reports whether a role may reopen a closed record. Reopening
// is a quality override reserved for Admin and Inspector.
func CanReopen(role model.Role) bool {
	return role == model.RoleAdmin || role == model.RoleInspector
}

// CanDelete reports whether a role may soft-delete a record.
func CanDelete(role model.Role) bool {
	switch role {
	case model.RoleAdmin, model.RoleInspector, model.RoleSupervisor:
		return true
	default:
		return false
	}
}

// SeesAllRecords reports whether a role's record listing is unfiltered
// (session drafts of other users excepted).
func SeesAllRecords(role model.Role) bool {
	switch role {
	case model.RoleAdmin, model.RoleInspector, model.RoleSupervisor:
		return true
	default:
		return false
	}
}

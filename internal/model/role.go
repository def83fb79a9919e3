package model

// Role is the closed set of user roles in the system.
type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleInspector  Role = "Inspector"
	RoleManager    Role = "Manager"
	RoleEngineer   Role = "Engineer"
	RoleSupervisor Role = "Supervisor"
	RoleOperator   Role = "Operator"
	RoleViewer     Role = "Viewer"
)

// Roles lists every role accepted for user accounts.
var Roles = []Role{
	RoleAdmin,
	RoleInspector,
	RoleManager,
	RoleEngineer,
	RoleSupervisor,
	RoleOperator,
	RoleViewer,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Level returns the hierarchy rank used for assignment eligibility.
// Admin and Inspector share the top rank; roles outside the hierarchy
// (Viewer, legacy values) rank 0.
func (r Role) Level() int {
	switch r {
	case RoleAdmin, RoleInspector:
		return 5
	case RoleManager:
		return 4
	case RoleEngineer:
		return 3
	case RoleSupervisor:
		return 2
	case RoleOperator:
		return 1
	default:
		return 0
	}
}

// CanAssignTo reports whether a user with role r may hand work to a user
// with role target. Assignment only goes to peers or more senior roles,
// never downward.
func (r Role) CanAssignTo(target Role) bool {
	return target.Level() >= r.Level()
}

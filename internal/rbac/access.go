package rbac

import "fmt"

// AccessControl holds the static role -> permission-set mapping and answers
// permission queries against it.
type AccessControl struct {
	rolePermissions map[Role]map[Permission]bool
}

// New constructs an AccessControl with the default role-permission mapping
// (spec.md §4.15): Admin holds every permission; Operator covers day-to-day
// operations; User covers basic capture/recall; Auditor and ReadOnly are
// read-only roles with no overlapping write permissions, preserving
// separation of duties between operational and audit roles.
func New() *AccessControl {
	ac := &AccessControl{rolePermissions: make(map[Role]map[Permission]bool, len(AllRoles))}

	ac.rolePermissions[RoleAdmin] = toSet(AllPermissions)

	ac.rolePermissions[RoleOperator] = toSet([]Permission{
		PermCapture, PermRecall, PermDelete, PermConsolidate,
		PermSync, PermPush, PermPull,
		PermConfigure,
		PermCreatePrompt, PermRunPrompt, PermDeletePrompt,
		PermViewHealth,
	})

	ac.rolePermissions[RoleUser] = toSet([]Permission{
		PermCapture, PermRecall, PermSync,
		PermCreatePrompt, PermRunPrompt,
	})

	ac.rolePermissions[RoleAuditor] = toSet([]Permission{
		PermRecall, PermViewAudit, PermGenerateReports, PermExportAudit, PermViewHealth,
	})

	ac.rolePermissions[RoleReadOnly] = toSet([]Permission{
		PermRecall, PermRunPrompt,
	})

	return ac
}

func toSet(perms []Permission) map[Permission]bool {
	set := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		set[p] = true
	}
	return set
}

// HasPermission reports whether role holds permission.
func (ac *AccessControl) HasPermission(role Role, permission Permission) bool {
	perms, ok := ac.rolePermissions[role]
	if !ok {
		return false
	}
	return perms[permission]
}

// CheckAccess returns a detailed AccessResult for role/permission.
func (ac *AccessControl) CheckAccess(role Role, permission Permission) AccessResult {
	if ac.HasPermission(role, permission) {
		return AccessResult{Granted: true}
	}
	return AccessResult{
		Granted: false,
		Reason:  fmt.Sprintf("role %q does not have permission %q", role.DisplayName(), permission.DisplayName()),
	}
}

// PermissionsFor returns every permission held by role.
func (ac *AccessControl) PermissionsFor(role Role) []Permission {
	perms := ac.rolePermissions[role]
	out := make([]Permission, 0, len(perms))
	for _, p := range AllPermissions {
		if perms[p] {
			out = append(out, p)
		}
	}
	return out
}

// RolesWithPermission returns every role holding permission.
func (ac *AccessControl) RolesWithPermission(permission Permission) []Role {
	var out []Role
	for _, r := range AllRoles {
		if ac.HasPermission(r, permission) {
			out = append(out, r)
		}
	}
	return out
}

// Grant adds permission to role, for runtime customization beyond the
// default mapping.
func (ac *AccessControl) Grant(role Role, permission Permission) {
	if ac.rolePermissions[role] == nil {
		ac.rolePermissions[role] = make(map[Permission]bool)
	}
	ac.rolePermissions[role][permission] = true
}

// Revoke removes permission from role.
func (ac *AccessControl) Revoke(role Role, permission Permission) {
	delete(ac.rolePermissions[role], permission)
}

// RoleSummary is a single role's permission count and list.
type RoleSummary struct {
	Role            Role
	PermissionCount int
	Permissions     []Permission
}

// Summary is an overview of the full role-permission mapping.
type Summary struct {
	TotalRoles       int
	TotalPermissions int
	Roles            []RoleSummary
}

// Summary builds a report of every role's permission set.
func (ac *AccessControl) Summary() Summary {
	roles := make([]RoleSummary, 0, len(AllRoles))
	for _, r := range AllRoles {
		perms := ac.PermissionsFor(r)
		roles = append(roles, RoleSummary{Role: r, PermissionCount: len(perms), Permissions: perms})
	}
	return Summary{TotalRoles: len(AllRoles), TotalPermissions: len(AllPermissions), Roles: roles}
}

// separationOfDuties holds permission pairs that must never both be granted
// to the same non-admin role (spec.md §4.15 separation-of-duties
// invariant).
var separationOfDuties = [][2]Permission{
	{PermManageUsers, PermViewAudit},
}

// ValidateSeparationOfDuties reports whether any non-admin role violates the
// configured separation-of-duties pairs.
func (ac *AccessControl) ValidateSeparationOfDuties() []string {
	var violations []string
	for _, role := range AllRoles {
		if role == RoleAdmin {
			continue
		}
		for _, pair := range separationOfDuties {
			if ac.HasPermission(role, pair[0]) && ac.HasPermission(role, pair[1]) {
				violations = append(violations, fmt.Sprintf(
					"role %q holds both %q and %q, violating separation of duties", role, pair[0], pair[1]))
			}
		}
	}
	return violations
}

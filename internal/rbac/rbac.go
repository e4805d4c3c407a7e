// Package rbac provides a static Role -> Permission mapping enforcing
// separation of duties (spec.md §4.15), ported from the original
// security/rbac module.
package rbac

// Role is a system role with a fixed permission set.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleUser     Role = "user"
	RoleAuditor  Role = "auditor"
	RoleReadOnly Role = "read_only"
)

// AllRoles lists every defined role.
var AllRoles = []Role{RoleAdmin, RoleOperator, RoleUser, RoleAuditor, RoleReadOnly}

// DisplayName returns a human-readable label for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleAdmin:
		return "Administrator"
	case RoleOperator:
		return "Operator"
	case RoleUser:
		return "User"
	case RoleAuditor:
		return "Auditor"
	case RoleReadOnly:
		return "Read-Only"
	default:
		return string(r)
	}
}

// Permission is a fine-grained operation gate.
type Permission string

const (
	// Memory operations.
	PermCapture     Permission = "capture"
	PermRecall      Permission = "recall"
	PermDelete      Permission = "delete"
	PermConsolidate Permission = "consolidate"

	// Sync operations.
	PermSync Permission = "sync"
	PermPush Permission = "push"
	PermPull Permission = "pull"

	// Configuration.
	PermConfigure      Permission = "configure"
	PermManageFeatures Permission = "manage_features"

	// User management.
	PermManageUsers Permission = "manage_users"
	PermAssignRoles Permission = "assign_roles"

	// Audit and compliance.
	PermViewAudit      Permission = "view_audit"
	PermGenerateReports Permission = "generate_reports"
	PermExportAudit    Permission = "export_audit"

	// Data subject rights (GDPR).
	PermExportData     Permission = "export_data"
	PermDeleteUserData Permission = "delete_user_data"
	PermManageConsent  Permission = "manage_consent"

	// Prompt management.
	PermCreatePrompt Permission = "create_prompt"
	PermRunPrompt    Permission = "run_prompt"
	PermDeletePrompt Permission = "delete_prompt"

	// System administration.
	PermViewHealth       Permission = "view_health"
	PermManageEncryption Permission = "manage_encryption"
	PermMaintenance      Permission = "maintenance"
)

// AllPermissions lists every defined permission.
var AllPermissions = []Permission{
	PermCapture, PermRecall, PermDelete, PermConsolidate,
	PermSync, PermPush, PermPull,
	PermConfigure, PermManageFeatures,
	PermManageUsers, PermAssignRoles,
	PermViewAudit, PermGenerateReports, PermExportAudit,
	PermExportData, PermDeleteUserData, PermManageConsent,
	PermCreatePrompt, PermRunPrompt, PermDeletePrompt,
	PermViewHealth, PermManageEncryption, PermMaintenance,
}

// DisplayName returns a human-readable label for the permission.
func (p Permission) DisplayName() string {
	switch p {
	case PermCapture:
		return "Capture Memories"
	case PermRecall:
		return "Recall Memories"
	case PermDelete:
		return "Delete Memories"
	case PermConsolidate:
		return "Consolidate Memories"
	case PermSync:
		return "Sync"
	case PermPush:
		return "Push to Remote"
	case PermPull:
		return "Pull from Remote"
	case PermConfigure:
		return "Configure System"
	case PermManageFeatures:
		return "Manage Features"
	case PermManageUsers:
		return "Manage Users"
	case PermAssignRoles:
		return "Assign Roles"
	case PermViewAudit:
		return "View Audit Logs"
	case PermGenerateReports:
		return "Generate Reports"
	case PermExportAudit:
		return "Export Audit Data"
	case PermExportData:
		return "Export User Data"
	case PermDeleteUserData:
		return "Delete User Data"
	case PermManageConsent:
		return "Manage Consent"
	case PermCreatePrompt:
		return "Create Prompts"
	case PermRunPrompt:
		return "Run Prompts"
	case PermDeletePrompt:
		return "Delete Prompts"
	case PermViewHealth:
		return "View Health"
	case PermManageEncryption:
		return "Manage Encryption"
	case PermMaintenance:
		return "Maintenance"
	default:
		return string(p)
	}
}

// AccessResult is the outcome of a CheckAccess call.
type AccessResult struct {
	Granted bool
	Reason  string
}

package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdminHasAllPermissions(t *testing.T) {
	ac := New()
	for _, p := range AllPermissions {
		assert.True(t, ac.HasPermission(RoleAdmin, p), "admin should have %s", p)
	}
}

func TestReadOnlyLimitedPermissions(t *testing.T) {
	ac := New()

	assert.True(t, ac.HasPermission(RoleReadOnly, PermRecall))
	assert.True(t, ac.HasPermission(RoleReadOnly, PermRunPrompt))

	assert.False(t, ac.HasPermission(RoleReadOnly, PermCapture))
	assert.False(t, ac.HasPermission(RoleReadOnly, PermDelete))
	assert.False(t, ac.HasPermission(RoleReadOnly, PermManageUsers))
}

func TestCheckAccessDeniedReason(t *testing.T) {
	ac := New()
	result := ac.CheckAccess(RoleUser, PermDelete)
	assert.False(t, result.Granted)
	assert.Contains(t, result.Reason, "User")
	assert.Contains(t, result.Reason, "Delete Memories")
}

func TestCheckAccessGranted(t *testing.T) {
	ac := New()
	result := ac.CheckAccess(RoleOperator, PermSync)
	assert.True(t, result.Granted)
	assert.Empty(t, result.Reason)
}

func TestPermissionsForAuditor(t *testing.T) {
	ac := New()
	perms := ac.PermissionsFor(RoleAuditor)
	assert.Contains(t, perms, PermViewAudit)
	assert.Contains(t, perms, PermGenerateReports)
	assert.NotContains(t, perms, PermCapture)
}

func TestRolesWithPermission(t *testing.T) {
	ac := New()
	roles := ac.RolesWithPermission(PermRecall)
	assert.Contains(t, roles, RoleAdmin)
	assert.Contains(t, roles, RoleUser)
	assert.Contains(t, roles, RoleReadOnly)
}

func TestGrantAndRevoke(t *testing.T) {
	ac := New()
	assert.False(t, ac.HasPermission(RoleReadOnly, PermCapture))

	ac.Grant(RoleReadOnly, PermCapture)
	assert.True(t, ac.HasPermission(RoleReadOnly, PermCapture))

	ac.Revoke(RoleReadOnly, PermCapture)
	assert.False(t, ac.HasPermission(RoleReadOnly, PermCapture))
}

func TestSummaryCounts(t *testing.T) {
	ac := New()
	summary := ac.Summary()
	assert.Equal(t, len(AllRoles), summary.TotalRoles)
	assert.Equal(t, len(AllPermissions), summary.TotalPermissions)
	assert.Len(t, summary.Roles, len(AllRoles))
}

func TestValidateSeparationOfDutiesDefaultConfigIsClean(t *testing.T) {
	ac := New()
	violations := ac.ValidateSeparationOfDuties()
	assert.Empty(t, violations, "default role mapping must not violate separation of duties")
}

func TestValidateSeparationOfDutiesDetectsConflict(t *testing.T) {
	ac := New()
	ac.Grant(RoleOperator, PermManageUsers)
	ac.Grant(RoleOperator, PermViewAudit)

	violations := ac.ValidateSeparationOfDuties()
	assert.NotEmpty(t, violations)
}

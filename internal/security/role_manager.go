package security

import (
	"fmt"
	"strings"

	"github.com/cortexvms/vms-core/internal/vmscore"
)

// roleRank orders vmscore.UserRole for the "at least this role" checks the
// Control Surface's route gating needs; higher ranks imply every
// permission a lower rank has.
var roleRank = map[vmscore.UserRole]int{
	vmscore.RoleViewer:   1,
	vmscore.RoleOperator: 2,
	vmscore.RoleAdmin:    3,
}

// PermissionChecker enforces role-based access for the Control Surface:
// any authenticated role may read, but mutating routes require the caller's
// role to be in the configured mutating-role set (SPEC_FULL §4.9).
type PermissionChecker struct {
	mutatingRoles map[string]bool
}

// NewPermissionChecker builds a PermissionChecker. mutatingRoles is the set
// of role names (e.g. {"operator": true, "admin": true}) allowed to call
// mutating routes, typically config.SecurityConfig.MutatingRoleSet().
func NewPermissionChecker(mutatingRoles map[string]bool) *PermissionChecker {
	return &PermissionChecker{mutatingRoles: mutatingRoles}
}

// ParseRole validates a string role and converts it to vmscore.UserRole.
func (p *PermissionChecker) ParseRole(roleString string) (vmscore.UserRole, error) {
	role := vmscore.UserRole(strings.ToLower(strings.TrimSpace(roleString)))
	if _, ok := roleRank[role]; !ok {
		return "", fmt.Errorf("invalid role: %s", roleString)
	}
	return role, nil
}

// CanRead reports whether role may call a read-only route: any recognized
// role may.
func (p *PermissionChecker) CanRead(role vmscore.UserRole) bool {
	_, ok := roleRank[role]
	return ok
}

// CanMutate reports whether role may call a mutating route (camera CRUD,
// lifecycle commands, manual ANPR trigger, retention/administration).
func (p *PermissionChecker) CanMutate(role vmscore.UserRole) bool {
	return p.mutatingRoles[string(role)]
}

// AtLeast reports whether role's rank is >= min's rank, for routes gated to
// a specific minimum role rather than the generic mutating-role set (e.g.
// an admin-only system-administration route).
func AtLeast(role, min vmscore.UserRole) bool {
	return roleRank[role] >= roleRank[min]
}

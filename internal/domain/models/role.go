// internal/domain/models/role.go
package models

import (
	"fmt"
	"strings"
)

// Role is the sole authorization discriminator for a user.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleProductManager Role = "product_manager"
	RoleTeamMember     Role = "team_member"
	RoleStakeholder    Role = "stakeholder"
)

// AllRoles lists every valid role in display order.
var AllRoles = []Role{RoleAdmin, RoleProductManager, RoleTeamMember, RoleStakeholder}

// ParseRole normalizes s and returns the matching Role, or an error when s
// is not one of AllRoles.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r.Valid() {
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Valid reports whether r is one of AllRoles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProductManager, RoleTeamMember, RoleStakeholder:
		return true
	}
	return false
}

// IsAdmin reports whether r is the admin role.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

func (r Role) String() string { return string(r) }

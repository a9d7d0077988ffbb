package authz

import "github.com/dalemusser/producthub/internal/domain/models"

// Capability names an action gated by role.
type Capability string

const (
	CapCreateProduct Capability = "create_product"
	CapEditProduct   Capability = "edit_product"
	CapDeleteProduct Capability = "delete_product"
	CapAssignTasks   Capability = "assign_tasks"
	CapManageUsers   Capability = "manage_users"
	CapViewAdmin     Capability = "view_admin"
	CapSetFeedback   Capability = "set_feedback_status"
)

var adminCaps = []Capability{
	CapCreateProduct,
	CapEditProduct,
	CapDeleteProduct,
	CapAssignTasks,
	CapManageUsers,
	CapViewAdmin,
	CapSetFeedback,
}

// Capabilities returns what role may do. Only admins hold any gated
// capability; the result is a fresh slice the caller may keep.
func Capabilities(role models.Role) []Capability {
	if !role.IsAdmin() {
		return []Capability{}
	}
	out := make([]Capability, len(adminCaps))
	copy(out, adminCaps)
	return out
}

// Can reports whether role holds c.
func Can(role models.Role, c Capability) bool {
	for _, have := range Capabilities(role) {
		if have == c {
			return true
		}
	}
	return false
}

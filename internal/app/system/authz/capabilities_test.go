package authz_test

import (
	"testing"

	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/stretchr/testify/assert"
)

func TestCapabilities_Admin(t *testing.T) {
	for _, c := range []authz.Capability{
		authz.CapCreateProduct,
		authz.CapEditProduct,
		authz.CapDeleteProduct,
		authz.CapAssignTasks,
		authz.CapManageUsers,
		authz.CapViewAdmin,
		authz.CapSetFeedback,
	} {
		assert.True(t, authz.Can(models.RoleAdmin, c), "admin should hold %s", c)
	}
}

func TestCapabilities_NonAdmin(t *testing.T) {
	for _, role := range []models.Role{models.RoleProductManager, models.RoleTeamMember, models.RoleStakeholder} {
		caps := authz.Capabilities(role)
		assert.NotNil(t, caps)
		assert.Empty(t, caps, "role %s", role)
		assert.False(t, authz.Can(role, authz.CapViewAdmin))
	}
}

func TestCapabilities_ReturnsCopy(t *testing.T) {
	caps := authz.Capabilities(models.RoleAdmin)
	caps[0] = "tampered"
	assert.True(t, authz.Can(models.RoleAdmin, authz.CapCreateProduct))
}

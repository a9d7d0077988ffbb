package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/producthub/internal/app/system/auth"
	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// testUserID returns a valid ObjectID hex string for tests.
func testUserID() string {
	return primitive.NewObjectID().Hex()
}

func TestIsAdmin_True_ForAdmin(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   testUserID(),
		Role: models.RoleAdmin,
	})

	if !authz.IsAdmin(req) {
		t.Error("expected IsAdmin to return true for admin user")
	}
}

func TestIsAdmin_False_ForTeamMember(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   testUserID(),
		Role: models.RoleTeamMember,
	})

	if authz.IsAdmin(req) {
		t.Error("expected IsAdmin to return false for team member")
	}
}

func TestIsAdmin_False_NoUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)

	if authz.IsAdmin(req) {
		t.Error("expected IsAdmin to return false when no user")
	}
}

func TestUserCtx_ValidUser(t *testing.T) {
	id := testUserID()
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   id,
		Name: "Pat",
		Role: "Product_Manager",
	})

	a, ok := authz.UserCtx(req)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if a.ID.Hex() != id {
		t.Errorf("ID: got %q, want %q", a.ID.Hex(), id)
	}
	if a.Role != models.RoleProductManager {
		t.Errorf("Role: got %q, want %q", a.Role, models.RoleProductManager)
	}
	if a.Name != "Pat" {
		t.Errorf("Name: got %q, want %q", a.Name, "Pat")
	}
}

func TestUserCtx_MalformedID(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "not-an-id", Role: models.RoleAdmin})

	if _, ok := authz.UserCtx(req); ok {
		t.Error("expected ok=false for malformed user ID")
	}
}

func TestUserCtx_UnknownRole(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: testUserID(), Role: "superuser"})

	if _, ok := authz.UserCtx(req); ok {
		t.Error("expected ok=false for unknown role")
	}
}

func TestHasAnyRole(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: testUserID(), Role: models.RoleStakeholder})

	if !authz.HasAnyRole(req, models.RoleAdmin, models.RoleStakeholder) {
		t.Error("expected stakeholder to match")
	}
	if authz.HasAnyRole(req, models.RoleAdmin) {
		t.Error("expected stakeholder not to match admin")
	}
	if role, ok := authz.Role(req); !ok || role != models.RoleStakeholder {
		t.Errorf("Role: got %q/%v, want %q/true", role, ok, models.RoleStakeholder)
	}
}

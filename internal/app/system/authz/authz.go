// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/dalemusser/producthub/internal/app/system/auth"
	"github.com/dalemusser/producthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor is the viewing user as seen by role-dependent logic.
type Actor struct {
	ID   primitive.ObjectID
	Name string
	Role models.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role.IsAdmin() }

// UserCtx returns the signed-in actor and a found flag.
// A missing user, an unknown role or a malformed user ID all yield ok=false,
// so callers can trust that ok=true means a valid ObjectID and a known role.
func UserCtx(r *http.Request) (Actor, bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return Actor{}, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return Actor{}, false
	}
	role, err := models.ParseRole(string(user.Role))
	if err != nil {
		return Actor{}, false
	}
	return Actor{ID: userID, Name: user.Name, Role: role}, true
}

// IsAdmin reports whether the current request's user is an admin.
func IsAdmin(r *http.Request) bool {
	a, ok := UserCtx(r)
	return ok && a.IsAdmin()
}

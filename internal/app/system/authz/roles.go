// internal/app/system/authz/roles.go
package authz

import (
	"net/http"

	"github.com/dalemusser/producthub/internal/domain/models"
)

// HasAnyRole reports whether the current request's user has any of the given roles.
// Returns false if no user is present (i.e., not signed in).
func HasAnyRole(r *http.Request, roles ...models.Role) bool {
	a, ok := UserCtx(r)
	if !ok {
		return false
	}
	for _, want := range roles {
		if want, err := models.ParseRole(string(want)); err == nil && a.Role == want {
			return true
		}
	}
	return false
}

// Role returns the current user's role and whether a user is present.
func Role(r *http.Request) (models.Role, bool) {
	a, ok := UserCtx(r)
	return a.Role, ok
}

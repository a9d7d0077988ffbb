// internal/app/features/status/routes.go
package status

import (
	"github.com/dalemusser/producthub/internal/app/system/auth"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter mounted under /status.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(models.RoleAdmin))
	r.Get("/", h.Serve)
	return r
}

package admin

import (
	"github.com/dalemusser/producthub/internal/app/system/auth"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts at /admin. Admin only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(models.RoleAdmin))

	r.Get("/", h.ServePanel)
	r.Patch("/users/{id}/role", h.HandleRole)
	r.Delete("/users/{id}", h.HandleDelete)
	r.Get("/users/{id}/logins", h.ServeLogins)
	r.Get("/audit", h.ServeAudit)
	return r
}

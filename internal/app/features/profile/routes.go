package profile

import (
	"github.com/dalemusser/producthub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts at /profile.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeProfile)
	r.Patch("/", h.HandleUpdate)
	r.Post("/password", h.HandleChangePassword)
	return r
}

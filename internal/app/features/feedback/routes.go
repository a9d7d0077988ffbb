package feedback

import (
	"github.com/dalemusser/producthub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts at /feedback.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Patch("/{id}/status", h.HandleStatus)
	return r
}

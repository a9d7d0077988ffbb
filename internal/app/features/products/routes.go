package products

import (
	"github.com/dalemusser/producthub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts at /products. Mutations are gated per capability inside
// the handlers.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Get("/{id}", h.ServeGet)
	r.Put("/{id}", h.HandleUpdate)
	r.Delete("/{id}", h.HandleDelete)
	return r
}

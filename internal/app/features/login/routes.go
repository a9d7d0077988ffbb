package login

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes serves POST / for password sign-in.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.With(middleware.NoCache).Post("/", h.HandleLogin)
	return r
}

package authgoogle

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes serves the public Google sign-in flow. Both legs redirect and
// set session state, so neither may be cached.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.NoCache)
	r.Get("/", h.ServeLogin)
	r.Get("/callback", h.ServeCallback)
	return r
}

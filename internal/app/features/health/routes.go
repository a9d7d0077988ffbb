package health

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes serves the probe at the mount root. HEAD is accepted for load
// balancers that only check the status line.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.NoCache)
	r.Get("/", h.Serve)
	r.Head("/", h.Serve)
	return r
}

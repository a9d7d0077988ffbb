package logout

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes serves POST / which clears the session cookie.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.With(middleware.NoCache).Post("/", h.HandleLogout)
	return r
}

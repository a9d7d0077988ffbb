package userinfo

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MountRoutes adds GET /api/user to r. Anonymous callers get 401 from the
// handler, so no auth middleware sits in front of it.
func MountRoutes(r chi.Router, h *Handler) {
	r.With(middleware.NoCache).Get("/api/user", h.ServeUserInfo)
}

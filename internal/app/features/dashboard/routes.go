package dashboard

import (
	"github.com/dalemusser/producthub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes serves the stats snapshot at / and the websocket feed at /live.
// Both require a signed-in user of any role.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.ServeDashboard)
	r.Get("/live", h.ServeLive)
	return r
}

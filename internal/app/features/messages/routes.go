package messages

import (
	"github.com/dalemusser/producthub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts at /messages.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/unread", h.ServeUnread)
	r.Get("/{userID}", h.ServeConversation)
	r.Post("/{userID}", h.HandleSend)
	return r
}

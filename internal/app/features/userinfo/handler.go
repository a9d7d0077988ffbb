// internal/app/features/userinfo/handler.go
package userinfo

import (
	"net/http"

	uierrors "github.com/dalemusser/producthub/internal/app/features/errors"
	"github.com/dalemusser/producthub/internal/app/system/auth"
	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/domain/models"
)

// Handler serves the current user's identity for front-end bootstrapping.
type Handler struct{}

// NewHandler creates a new userinfo handler.
func NewHandler() *Handler {
	return &Handler{}
}

type userInfo struct {
	IsAuthenticated bool               `json:"isAuthenticated"`
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Email           string             `json:"email"`
	Role            models.Role        `json:"role"`
	Capabilities    []authz.Capability `json:"capabilities"`
}

// ServeUserInfo returns the current user's authentication status, identity
// and capability list.
//
// Response format:
//
//	{ "isAuthenticated": bool, "id": "...", "name": "...", "email": "...",
//	  "role": "...", "capabilities": [...] }
//
// Visitors get isAuthenticated=false with empty fields, never an error.
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.UserCtx(r)
	if !ok {
		uierrors.WriteJSON(w, http.StatusOK, userInfo{Capabilities: []authz.Capability{}})
		return
	}

	var email string
	if u, ok := auth.CurrentUser(r); ok {
		email = u.Email
	}
	uierrors.WriteJSON(w, http.StatusOK, userInfo{
		IsAuthenticated: true,
		ID:              actor.ID.Hex(),
		Name:            actor.Name,
		Email:           email,
		Role:            actor.Role,
		Capabilities:    authz.Capabilities(actor.Role),
	})
}

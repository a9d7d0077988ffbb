// Package profile lets a signed-in user view and edit their own account.
package profile

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/producthub/internal/app/features/errors"
	userstore "github.com/dalemusser/producthub/internal/app/store/users"
	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/app/system/inputval"
	"github.com/dalemusser/producthub/internal/app/system/timeouts"
	"github.com/dalemusser/producthub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Handler owns the profile endpoints.
type Handler struct {
	Users      *userstore.Store
	BcryptCost int
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

// NewHandler returns a profile handler. A cost outside bcrypt's range falls
// back to bcrypt.DefaultCost.
func NewHandler(users *userstore.Store, bcryptCost int, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Handler{
		Users:      users,
		BcryptCost: bcryptCost,
		ErrLog:     errLog,
		Log:        logger,
	}
}

type profileResponse struct {
	User         models.User `json:"user"`
	HasPassword  bool        `json:"has_password"`
	GoogleLinked bool        `json:"google_linked"`
}

type nameInput struct {
	DisplayName string `json:"display_name" validate:"required,max=100" label:"Display name"`
}

type passwordInput struct {
	CurrentPassword string `json:"current_password" validate:"required" label:"Current password"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72" label:"New password"`
}

// ServeProfile handles GET /profile.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, newProfileResponse(u))
}

// HandleUpdate handles PATCH /profile. Only the display name is editable;
// email and role are not.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in nameInput
	if err := inputval.DecodeJSON(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode profile", err, "Invalid request body.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, res.First())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if err := h.Users.UpdateDisplayName(ctx, u.ID, in.DisplayName); err != nil {
		h.storeError(w, r, "profile: update name", err)
		return
	}
	u, ok = h.load(ctx, w, r)
	if !ok {
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, newProfileResponse(u))
}

// HandleChangePassword handles POST /profile/password. Google-only
// accounts have no password to change.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in passwordInput
	if err := inputval.DecodeJSON(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode password change", err, "Invalid request body.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, res.First())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if u.PasswordHash == "" {
		uierrors.JSON(w, http.StatusConflict, uierrors.CodeConflict, "This account signs in with Google.")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.CurrentPassword)) != nil {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, "Current password is incorrect.")
		return
	}
	if in.NewPassword == in.CurrentPassword {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, "New password cannot be the same as your current password.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), h.BcryptCost)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "profile: hash password", err, "Failed to update password.")
		return
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, string(hash)); err != nil {
		h.storeError(w, r, "profile: update password", err)
		return
	}
	h.Log.Info("password changed", zap.String("user_id", u.ID.Hex()))
	w.WriteHeader(http.StatusNoContent)
}

// load fetches the signed-in user's record.
func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.User, bool) {
	actor, ok := authz.UserCtx(r)
	if !ok {
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized, "Sign in required.")
		return models.User{}, false
	}
	u, err := h.Users.GetByID(ctx, actor.ID)
	if err != nil {
		h.storeError(w, r, "profile: load user", err)
		return models.User{}, false
	}
	return *u, true
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if errors.Is(err, userstore.ErrNotFound) {
		uierrors.JSON(w, http.StatusNotFound, uierrors.CodeNotFound, "User not found.")
		return
	}
	h.ErrLog.LogServerError(w, r, msg, err, "A database error occurred.")
}

func newProfileResponse(u models.User) profileResponse {
	return profileResponse{
		User:         u,
		HasPassword:  u.PasswordHash != "",
		GoogleLinked: u.GoogleID != "",
	}
}

// Package signup creates password accounts.
package signup

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/producthub/internal/app/features/errors"
	loginstore "github.com/dalemusser/producthub/internal/app/store/logins"
	userstore "github.com/dalemusser/producthub/internal/app/store/users"
	"github.com/dalemusser/producthub/internal/app/system/auditlog"
	"github.com/dalemusser/producthub/internal/app/system/inputval"
	"github.com/dalemusser/producthub/internal/app/system/normalize"
	"github.com/dalemusser/producthub/internal/app/system/ratelimit"
	"github.com/dalemusser/producthub/internal/app/system/timeouts"
	"github.com/dalemusser/producthub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	Users      *userstore.Store
	BcryptCost int
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger

	// Limiter caps sign-ups per client IP; nil disables it.
	Limiter *ratelimit.Limiter
	Audit   *auditlog.Logger
}

// NewHandler returns a signup handler. A cost outside bcrypt's range falls
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

type signupInput struct {
	Email       string `json:"email" validate:"required,email,max=254" label:"Email"`
	Password    string `json:"password" validate:"required,min=8,max=72" label:"Password"`
	DisplayName string `json:"display_name" validate:"required,max=100" label:"Display name"`
	Role        string `json:"role" validate:"omitempty,role" label:"Role"`
}

type signupResponse struct {
	User models.User `json:"user"`
}

// HandleSignup handles POST /signup.
//
// The account is created but not signed in; the client follows up with
// POST /login. Any role may be requested except admin, which is only
// granted to the very first account.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if h.Limiter != nil && !h.Limiter.Allow(loginstore.ClientIP(r)) {
		uierrors.JSON(w, http.StatusTooManyRequests, uierrors.CodeRateLimited,
			"Too many sign-ups from this address. Please try again later.")
		return
	}

	var in signupInput
	if err := inputval.DecodeJSON(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode signup", err, "Invalid request body.")
		return
	}
	in.Email = normalize.Email(in.Email)
	in.DisplayName = normalize.Name(in.DisplayName)
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, res.First())
		return
	}

	role := models.RoleTeamMember
	if in.Role != "" {
		role, _ = models.ParseRole(in.Role)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if role.IsAdmin() {
		n, err := h.Users.Count(ctx)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "signup: count users", err, "A database error occurred.")
			return
		}
		if n > 0 {
			h.ErrLog.LogForbidden(w, r, "signup: admin role requested", "The admin role cannot be self-assigned.")
			return
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), h.BcryptCost)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "signup: hash password", err, "Could not create the account.")
		return
	}

	u, err := h.Users.Create(ctx, models.User{
		Email:        in.Email,
		DisplayName:  in.DisplayName,
		Role:         role,
		PasswordHash: string(hash),
	})
	switch {
	case errors.Is(err, userstore.ErrDuplicateEmail):
		uierrors.JSON(w, http.StatusConflict, uierrors.CodeConflict, "An account with this email already exists.")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "signup: create user", err, "Could not create the account.")
		return
	}

	h.Log.Info("account created",
		zap.String("user_id", u.ID.Hex()),
		zap.String("role", string(u.Role)))
	h.Audit.Signup(ctx, r, u.ID, u.Role)
	uierrors.WriteJSON(w, http.StatusCreated, signupResponse{User: u})
}

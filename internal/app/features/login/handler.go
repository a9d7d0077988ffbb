// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/producthub/internal/app/features/errors"
	"github.com/dalemusser/producthub/internal/app/store/audit"
	loginstore "github.com/dalemusser/producthub/internal/app/store/logins"
	userstore "github.com/dalemusser/producthub/internal/app/store/users"
	"github.com/dalemusser/producthub/internal/app/system/auditlog"
	"github.com/dalemusser/producthub/internal/app/system/auth"
	"github.com/dalemusser/producthub/internal/app/system/inputval"
	"github.com/dalemusser/producthub/internal/app/system/normalize"
	"github.com/dalemusser/producthub/internal/app/system/ratelimit"
	"github.com/dalemusser/producthub/internal/app/system/timeouts"
	"github.com/dalemusser/producthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const invalidCredentials = "Invalid email or password."

type Handler struct {
	Users      *userstore.Store
	Logins     *loginstore.Store
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger

	// Limiter throttles attempts; nil disables throttling.
	Limiter *ratelimit.LoginLimiter
	// Audit records sign-in outcomes; nil disables auditing.
	Audit   *auditlog.Logger
}

func NewHandler(users *userstore.Store, logins *loginstore.Store, sessionMgr *auth.SessionManager, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		Logins:     logins,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		Log:        logger,
	}
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
}

type loginResponse struct {
	User models.User `json:"user"`
}

// HandleLogin handles POST /login.
//
// On success the session cookie is set, last_login is refreshed and a
// login record is written. Unknown email and wrong password give the same
// 401 so the endpoint does not reveal which accounts exist.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := inputval.DecodeJSON(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode login", err, "Invalid request body.")
		return
	}
	in.Email = normalize.Email(in.Email)
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, res.First())
		return
	}
	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(loginstore.ClientIP(r), in.Email); !ok {
			h.Log.Warn("login: rate limited", zap.String("email", in.Email), zap.String("ip", loginstore.ClientIP(r)))
			h.Audit.LoginFailed(r.Context(), r, audit.EventLoginFailedRateLimit, primitive.NilObjectID, in.Email, reason)
			uierrors.JSON(w, http.StatusTooManyRequests, uierrors.CodeRateLimited, reason)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, in.Email)
	if errors.Is(err, userstore.ErrNotFound) {
		h.Log.Info("login: unknown email", zap.String("email", in.Email))
		h.Audit.LoginFailed(ctx, r, audit.EventLoginFailedUserNotFound, primitive.NilObjectID, in.Email, "user not found")
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized, invalidCredentials)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "login: load user", err, "A database error occurred.")
		return
	}

	if u.PasswordHash == "" {
		h.Audit.LoginFailed(ctx, r, audit.EventLoginFailedNoPassword, u.ID, in.Email, "no password set")
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized,
			"This account signs in with Google.")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		h.Log.Info("login: wrong password", zap.String("user_id", u.ID.Hex()))
		h.Audit.LoginFailed(ctx, r, audit.EventLoginFailedWrongPassword, u.ID, in.Email, "wrong password")
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized, invalidCredentials)
		return
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if err := h.Users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		h.Log.Warn("login: update last_login", zap.Error(err), zap.String("user_id", u.ID.Hex()))
	} else {
		u.LastLogin = now
	}
	if err := h.Logins.CreateFrom(ctx, r, u.ID, loginstore.ProviderPassword); err != nil {
		h.Log.Warn("login: record login", zap.Error(err), zap.String("user_id", u.ID.Hex()))
	}

	if err := h.SessionMgr.Login(w, r, *u); err != nil {
		h.ErrLog.LogServerError(w, r, "save session failed", err, "Could not start a session.")
		return
	}

	if h.Limiter != nil {
		h.Limiter.ResetEmail(in.Email)
	}
	h.Audit.LoginSuccess(ctx, r, u.ID, loginstore.ProviderPassword)
	h.Log.Info("user signed in",
		zap.String("user_id", u.ID.Hex()),
		zap.String("role", string(u.Role)))
	uierrors.WriteJSON(w, http.StatusOK, loginResponse{User: *u})
}

// Package admin is the admin panel: system totals and user management.
package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	uierrors "github.com/dalemusser/producthub/internal/app/features/errors"
	"github.com/dalemusser/producthub/internal/app/store/audit"
	loginstore "github.com/dalemusser/producthub/internal/app/store/logins"
	metricsstore "github.com/dalemusser/producthub/internal/app/store/metrics"
	userstore "github.com/dalemusser/producthub/internal/app/store/users"
	"github.com/dalemusser/producthub/internal/app/system/auditlog"
	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/app/system/inputval"
	"github.com/dalemusser/producthub/internal/app/system/timeouts"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	recentLogins  = 20
	maxAuditLimit = 500
)

type Handler struct {
	DB     *mongo.Database
	Users  *userstore.Store
	Logins *loginstore.Store
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger

	// Events backs GET /admin/audit; Audit records admin actions. Either
	// may be nil.
	Events *audit.Store
	Audit  *auditlog.Logger
}

func NewHandler(db *mongo.Database, users *userstore.Store, logins *loginstore.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:     db,
		Users:  users,
		Logins: logins,
		ErrLog: errLog,
		Log:    logger,
	}
}

type panelResponse struct {
	Stats metricsstore.Counts `json:"stats"`
	Users []models.User       `json:"users"`
}

type roleInput struct {
	Role string `json:"role" validate:"required,role" label:"Role"`
}

type userResponse struct {
	User models.User `json:"user"`
}

type loginsResponse struct {
	Logins []models.LoginRecord `json:"logins"`
}

type auditResponse struct {
	Events []audit.Event `json:"events"`
}

// ServePanel handles GET /admin: totals plus every user, newest first.
func (h *Handler) ServePanel(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "admin: list users", err, "A database error occurred.")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, panelResponse{
		Stats: metricsstore.FetchAdminCounts(ctx, h.DB, time.Now().UTC()),
		Users: users,
	})
}

// HandleRole handles PATCH /admin/users/{id}/role. Admins cannot change
// their own role.
func (h *Handler) HandleRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.require(w, r)
	if !ok {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if id == actor.ID {
		uierrors.JSON(w, http.StatusConflict, uierrors.CodeConflict, "You cannot change your own role.")
		return
	}

	var in roleInput
	if err := inputval.DecodeJSON(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode role", err, "Invalid request body.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, res.First())
		return
	}
	role, _ := models.ParseRole(in.Role)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Users.UpdateRole(ctx, id, role); err != nil {
		h.storeError(w, r, "admin: update role", err)
		return
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		h.storeError(w, r, "admin: reload user", err)
		return
	}
	h.Log.Info("user role changed",
		zap.String("user_id", id.Hex()),
		zap.String("role", string(role)),
		zap.String("by", actor.ID.Hex()))
	h.Audit.RoleChanged(ctx, r, actor.ID, id, role)
	uierrors.WriteJSON(w, http.StatusOK, userResponse{User: *u})
}

// HandleDelete handles DELETE /admin/users/{id}. Admins cannot delete
// themselves.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.require(w, r)
	if !ok {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if id == actor.ID {
		uierrors.JSON(w, http.StatusConflict, uierrors.CodeConflict, "You cannot delete your own account.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		h.storeError(w, r, "admin: delete user", err)
		return
	}
	h.Log.Info("user deleted", zap.String("user_id", id.Hex()), zap.String("by", actor.ID.Hex()))
	h.Audit.UserDeleted(ctx, r, actor.ID, id)
	w.WriteHeader(http.StatusNoContent)
}

// ServeLogins handles GET /admin/users/{id}/logins: recent sign-ins.
func (h *Handler) ServeLogins(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r); !ok {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	recs, err := h.Logins.Recent(ctx, id, recentLogins)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "admin: recent logins", err, "A database error occurred.")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, loginsResponse{Logins: recs})
}

// ServeAudit handles GET /admin/audit. Optional filters: category,
// event_type, user_id and limit (1-500, default 100).
func (h *Handler) ServeAudit(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r); !ok {
		return
	}
	if h.Events == nil {
		uierrors.JSON(w, http.StatusServiceUnavailable, uierrors.CodeUnavailable, "Audit storage is disabled.")
		return
	}

	f := audit.QueryFilter{
		Category:  query.Get(r, "category"),
		EventType: query.Get(r, "event_type"),
	}
	if v := query.Get(r, "user_id"); v != "" {
		id, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeBadRequest, "Invalid user id.")
			return
		}
		f.UserID = &id
	}
	if v := query.Get(r, "limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 || n > maxAuditLimit {
			uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, "limit must be between 1 and 500.")
			return
		}
		f.Limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	events, err := h.Events.Query(ctx, f)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "admin: query audit", err, "A database error occurred.")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, auditResponse{Events: events})
}

func (h *Handler) require(w http.ResponseWriter, r *http.Request) (authz.Actor, bool) {
	actor, ok := authz.UserCtx(r)
	if !ok {
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized, "Sign in required.")
		return authz.Actor{}, false
	}
	if !authz.Can(actor.Role, authz.CapManageUsers) {
		h.ErrLog.LogForbidden(w, r, "admin: access denied", "Admins only.")
		return authz.Actor{}, false
	}
	return actor, true
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		uierrors.JSON(w, http.StatusNotFound, uierrors.CodeNotFound, "User not found.")
	case errors.Is(err, userstore.ErrInvalidRole):
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, err.Error())
	default:
		h.ErrLog.LogServerError(w, r, msg, err, "A database error occurred.")
	}
}

func userID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeBadRequest, "Invalid user id.")
		return primitive.NilObjectID, false
	}
	return id, true
}

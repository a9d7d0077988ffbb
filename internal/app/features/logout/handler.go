// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	uierrors "github.com/dalemusser/producthub/internal/app/features/errors"
	"github.com/dalemusser/producthub/internal/app/system/auditlog"
	"github.com/dalemusser/producthub/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	Audit      *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
	}
}

type logoutResponse struct {
	Status string `json:"status"`
}

// HandleLogout handles POST /logout. The session cookie is expired even
// when the incoming one no longer decodes.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if u, ok := auth.CurrentUser(r); ok {
		userID = u.ID
	}
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err), zap.String("user_id", userID))
		uierrors.JSON(w, http.StatusInternalServerError, uierrors.CodeInternal, "Could not end the session.")
		return
	}
	h.Log.Info("user signed out", zap.String("user_id", userID))
	oid, _ := primitive.ObjectIDFromHex(userID)
	h.Audit.Logout(r.Context(), r, oid)
	uierrors.WriteJSON(w, http.StatusOK, logoutResponse{Status: "signed_out"})
}

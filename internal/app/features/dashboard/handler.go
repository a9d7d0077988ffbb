// internal/app/features/dashboard/handler.go
package dashboard

import (
	"net/http"

	uierrors "github.com/dalemusser/producthub/internal/app/features/errors"
	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/app/system/livestats"
	"github.com/dalemusser/producthub/internal/domain/models"
	"go.uber.org/zap"
)

type Handler struct {
	Stats *livestats.Registry
	Log   *zap.Logger
}

func NewHandler(stats *livestats.Registry, logger *zap.Logger) *Handler {
	return &Handler{
		Stats: stats,
		Log:   logger,
	}
}

type dashboardResponse struct {
	Role         models.Role         `json:"role"`
	Capabilities []authz.Capability  `json:"capabilities"`
	Snapshot     *livestats.Snapshot `json:"snapshot,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// ServeDashboard handles GET /dashboard. Admins see system-wide figures;
// everyone else sees tasks scoped to themselves. The snapshot comes from a
// live session when one exists for the viewer's scope.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.UserCtx(r)
	if !ok {
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized, "Sign in required.")
		return
	}

	resp := dashboardResponse{
		Role:         actor.Role,
		Capabilities: authz.Capabilities(actor.Role),
	}

	snap, err := h.Stats.Snapshot(r.Context(), actor)
	if err != nil {
		h.Log.Warn("dashboard: compute snapshot",
			zap.Error(err),
			zap.String("user_id", actor.ID.Hex()))
		resp.Error = "Statistics are temporarily unavailable."
		uierrors.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Snapshot = &snap
	uierrors.WriteJSON(w, http.StatusOK, resp)
}

// internal/app/features/status/handler.go
package status

import (
	"context"
	"net/http"
	"runtime"
	"time"

	uierrors "github.com/dalemusser/producthub/internal/app/features/errors"
	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/app/system/livestats"
	"github.com/dalemusser/producthub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// AppConfig carries the configuration values the status page reports.
type AppConfig struct {
	MongoDatabase  string
	ChangeFeed     string
	RecentProducts int
	LiveTimeout    time.Duration
}

// Handler reports runtime status to admins.
type Handler struct {
	Client  *mongo.Client
	BaseURL string
	Stats   *livestats.Registry
	Config  AppConfig
	Started time.Time
	Log     *zap.Logger
}

// NewHandler constructs a status Handler. stats may be nil.
func NewHandler(client *mongo.Client, baseURL string, stats *livestats.Registry, cfg AppConfig, logger *zap.Logger) *Handler {
	return &Handler{
		Client:  client,
		BaseURL: baseURL,
		Stats:   stats,
		Config:  cfg,
		Started: time.Now(),
		Log:     logger,
	}
}

type databaseStatus struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type statusResponse struct {
	BaseURL        string         `json:"base_url"`
	GoVersion      string         `json:"go_version"`
	Goroutines     int            `json:"goroutines"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
	Database       databaseStatus `json:"database"`
	ChangeFeed     string         `json:"change_feed"`
	LiveSessions   int            `json:"live_sessions"`
	RecentProducts int            `json:"recent_products"`
	LiveTimeout    string         `json:"live_timeout"`
}

// Serve handles GET /status (admin only).
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.UserCtx(r)
	if !ok {
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized, "Sign in required.")
		return
	}
	if !authz.Can(actor.Role, authz.CapViewAdmin) {
		uierrors.JSON(w, http.StatusForbidden, uierrors.CodeForbidden, "Admins only.")
		return
	}

	resp := statusResponse{
		BaseURL:        h.BaseURL,
		GoVersion:      runtime.Version(),
		Goroutines:     runtime.NumGoroutine(),
		UptimeSeconds:  int64(time.Since(h.Started).Seconds()),
		Database:       h.pingDatabase(r.Context()),
		ChangeFeed:     h.Config.ChangeFeed,
		RecentProducts: h.Config.RecentProducts,
		LiveTimeout:    h.Config.LiveTimeout.String(),
	}
	if h.Stats != nil {
		resp.LiveSessions = h.Stats.Len()
	}
	uierrors.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) pingDatabase(parent context.Context) databaseStatus {
	ctx, cancel := context.WithTimeout(parent, timeouts.Ping())
	defer cancel()

	st := databaseStatus{Name: h.Config.MongoDatabase}
	start := time.Now()
	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Warn("status: mongo ping failed", zap.Error(err))
		st.Error = err.Error()
		return st
	}
	st.Connected = true
	st.LatencyMS = time.Since(start).Milliseconds()
	return st
}

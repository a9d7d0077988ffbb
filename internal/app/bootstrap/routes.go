// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"strings"
	"time"

	adminfeature "github.com/dalemusser/producthub/internal/app/features/admin"
	authgooglefeature "github.com/dalemusser/producthub/internal/app/features/authgoogle"
	dashboardfeature "github.com/dalemusser/producthub/internal/app/features/dashboard"
	errorsfeature "github.com/dalemusser/producthub/internal/app/features/errors"
	feedbackfeature "github.com/dalemusser/producthub/internal/app/features/feedback"
	healthfeature "github.com/dalemusser/producthub/internal/app/features/health"
	loginfeature "github.com/dalemusser/producthub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/producthub/internal/app/features/logout"
	messagesfeature "github.com/dalemusser/producthub/internal/app/features/messages"
	metricsfeature "github.com/dalemusser/producthub/internal/app/features/metrics"
	productsfeature "github.com/dalemusser/producthub/internal/app/features/products"
	profilefeature "github.com/dalemusser/producthub/internal/app/features/profile"
	signupfeature "github.com/dalemusser/producthub/internal/app/features/signup"
	statusfeature "github.com/dalemusser/producthub/internal/app/features/status"
	tasksfeature "github.com/dalemusser/producthub/internal/app/features/tasks"
	userinfofeature "github.com/dalemusser/producthub/internal/app/features/userinfo"
	"github.com/dalemusser/producthub/internal/app/store/audit"
	feedbackstore "github.com/dalemusser/producthub/internal/app/store/feedback"
	loginstore "github.com/dalemusser/producthub/internal/app/store/logins"
	messagestore "github.com/dalemusser/producthub/internal/app/store/messages"
	"github.com/dalemusser/producthub/internal/app/store/oauthstate"
	productstore "github.com/dalemusser/producthub/internal/app/store/products"
	taskstore "github.com/dalemusser/producthub/internal/app/store/tasks"
	userstore "github.com/dalemusser/producthub/internal/app/store/users"
	"github.com/dalemusser/producthub/internal/app/system/auditlog"
	"github.com/dalemusser/producthub/internal/app/system/auth"
	"github.com/dalemusser/producthub/internal/app/system/docstore"
	"github.com/dalemusser/producthub/internal/app/system/livestats"
	"github.com/dalemusser/producthub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// signupsPerHour caps account creation per client IP.
const signupsPerHour = 10

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. ProductHub applies request metrics and
// session middleware, builds the live dashboard engine on top of the
// configured change feed, and mounts the JSON feature routers.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	db := deps.ProductHubMongoDatabase

	// Reload the user on each request so role changes and deletions take
	// effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db))

	errLog := errorsfeature.NewErrorLogger(logger)

	users := userstore.New(db, deps.Feed)
	products := productstore.New(db, deps.Feed)
	taskStore := taskstore.New(db, deps.Feed)
	feedback := feedbackstore.New(db, deps.Feed)
	msgs := messagestore.New(db, deps.Feed)
	logins := loginstore.New(db)
	states := oauthstate.New(db)
	events := audit.New(db)
	auditLog := auditlog.New(events, logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})

	engine := livestats.New(docstore.New(db), deps.Feed, logger, livestats.Options{
		Timeout:        appCfg.LiveStatsTimeout,
		RecentProducts: appCfg.RecentProducts,
	})
	stats := livestats.NewRegistry(engine)

	r := chi.NewRouter()

	r.Use(metricsfeature.Instrument)
	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)
	r.Get("/forbidden", errorsHandler.Forbidden)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.ProductHubMongoClient, deps.Redis, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Mount("/metrics", metricsfeature.Routes())

	// Authentication
	signupLimiter := ratelimit.New(signupsPerHour, time.Hour)
	loginLimiter := ratelimit.NewLoginLimiter()

	signupHandler := signupfeature.NewHandler(users, appCfg.BcryptCost, errLog, logger)
	signupHandler.Limiter = signupLimiter
	signupHandler.Audit = auditLog
	r.Mount("/signup", signupfeature.Routes(signupHandler))

	loginHandler := loginfeature.NewHandler(users, logins, sessionMgr, errLog, logger)
	loginHandler.Limiter = loginLimiter
	loginHandler.Audit = auditLog
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, logger)
	logoutHandler.Audit = auditLog
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	redirectURL := strings.TrimRight(appCfg.BaseURL, "/") + "/auth/google/callback"
	googleHandler := authgooglefeature.NewHandler(users, logins, states, sessionMgr,
		appCfg.GoogleClientID, appCfg.GoogleClientSecret, redirectURL, logger)
	googleHandler.Audit = auditLog
	if !googleHandler.IsConfigured() {
		logger.Info("Google sign-in disabled (google_client_id not set)")
	}
	r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))

	userinfofeature.MountRoutes(r, userinfofeature.NewHandler())

	profileHandler := profilefeature.NewHandler(users, appCfg.BcryptCost, errLog, logger)
	r.Mount("/profile", profilefeature.Routes(profileHandler, sessionMgr))

	// Live dashboard
	dashboardHandler := dashboardfeature.NewHandler(stats, logger)
	r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler, sessionMgr))

	// Domain features
	productsHandler := productsfeature.NewHandler(products, errLog, logger)
	productsHandler.Audit = auditLog
	r.Mount("/products", productsfeature.Routes(productsHandler, sessionMgr))

	tasksHandler := tasksfeature.NewHandler(taskStore, users, products, errLog, logger)
	r.Mount("/tasks", tasksfeature.Routes(tasksHandler, sessionMgr))

	feedbackHandler := feedbackfeature.NewHandler(feedback, errLog, logger)
	feedbackHandler.Audit = auditLog
	r.Mount("/feedback", feedbackfeature.Routes(feedbackHandler, sessionMgr))

	messagesHandler := messagesfeature.NewHandler(msgs, users, errLog, logger)
	r.Mount("/messages", messagesfeature.Routes(messagesHandler, sessionMgr))

	// Administration
	adminHandler := adminfeature.NewHandler(db, users, logins, errLog, logger)
	adminHandler.Events = events
	adminHandler.Audit = auditLog
	r.Mount("/admin", adminfeature.Routes(adminHandler, sessionMgr))

	statusHandler := statusfeature.NewHandler(deps.ProductHubMongoClient, appCfg.BaseURL, stats, statusfeature.AppConfig{
		MongoDatabase:  appCfg.MongoDatabase,
		ChangeFeed:     appCfg.ChangeFeed,
		RecentProducts: appCfg.RecentProducts,
		LiveTimeout:    appCfg.LiveStatsTimeout,
	}, logger)
	r.Mount("/status", statusfeature.Routes(statusHandler, sessionMgr))

	if deps.rt != nil {
		deps.rt.stats = stats
		deps.rt.messages = messagesHandler
		deps.rt.closers = append(deps.rt.closers,
			func() error { signupLimiter.Close(); return nil },
			func() error { loginLimiter.Close(); return nil },
		)
	}

	return r, nil
}

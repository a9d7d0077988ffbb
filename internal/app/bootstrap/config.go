// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/producthub/internal/app/system/auditlog"
	"github.com/dalemusser/producthub/internal/app/system/changefeed"
	"github.com/dalemusser/producthub/internal/app/system/livestats"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// appConfigKeys defines the configuration keys for ProductHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: PRODUCTHUB_MONGO_URI, PRODUCTHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "producthub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "producthub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime (e.g., 24h, 720h)"},

	// Change feed
	{Name: "change_feed", Default: changefeed.KindLocal, Desc: "Change feed: 'streams', 'redis' or 'local'"},
	{Name: "redis_addr", Default: "localhost:6379", Desc: "Redis address (change_feed=redis)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},
	{Name: "redis_channel", Default: "producthub:changes", Desc: "Redis pub/sub channel for change notifications"},

	// Live dashboard
	{Name: "livestats_timeout", Default: "10s", Desc: "Timeout for one dashboard recompute"},
	{Name: "recent_products", Default: livestats.DefaultRecentProducts, Desc: "Number of recent products on the dashboard"},

	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public base URL (used for the OAuth callback)"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	{Name: "bcrypt_cost", Default: bcrypt.DefaultCost, Desc: "bcrypt cost for password hashes"},
	{Name: "login_retention", Default: "2160h", Desc: "How long login history is kept"},

	// Audit trail
	{Name: "audit_log_auth", Default: auditlog.ModeAll, Desc: "Audit mode for sign-in events: 'all', 'db', 'log' or 'off'"},
	{Name: "audit_log_admin", Default: auditlog.ModeAll, Desc: "Audit mode for admin actions: 'all', 'db', 'log' or 'off'"},
	{Name: "audit_retention", Default: "8760h", Desc: "How long stored audit events are kept"},

	// Admin bootstrap
	{Name: "admin_email", Default: "", Desc: "Email of an account to promote (or create) as admin on startup"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, PRODUCTHUB_* for app) and flags,
// merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "PRODUCTHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 30*24*time.Hour),

		ChangeFeed:    appValues.String("change_feed"),
		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),
		RedisChannel:  appValues.String("redis_channel"),

		LiveStatsTimeout: appValues.Duration("livestats_timeout", livestats.DefaultTimeout),
		RecentProducts:   appValues.Int("recent_products"),

		BaseURL: appValues.String("base_url"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		BcryptCost:     appValues.Int("bcrypt_cost"),
		LoginRetention: appValues.Duration("login_retention", 90*24*time.Hour),

		AuditLogAuth:   appValues.String("audit_log_auth"),
		AuditLogAdmin:  appValues.String("audit_log_admin"),
		AuditRetention: appValues.Duration("audit_retention", 365*24*time.Hour),

		AdminEmail: appValues.String("admin_email"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if !changefeed.IsValidKind(appCfg.ChangeFeed) {
		return fmt.Errorf("change_feed must be %q, %q or %q, got %q",
			changefeed.KindStreams, changefeed.KindRedis, changefeed.KindLocal, appCfg.ChangeFeed)
	}
	if appCfg.ChangeFeed == changefeed.KindRedis && appCfg.RedisAddr == "" {
		return fmt.Errorf("change_feed=redis requires redis_addr")
	}
	if appCfg.RecentProducts < 1 {
		return fmt.Errorf("recent_products must be at least 1, got %d", appCfg.RecentProducts)
	}
	if appCfg.LiveStatsTimeout <= 0 {
		return fmt.Errorf("livestats_timeout must be positive")
	}
	if appCfg.GoogleClientID != "" && appCfg.GoogleClientSecret == "" {
		return fmt.Errorf("google_client_id is set but google_client_secret is empty")
	}
	if appCfg.BcryptCost != 0 && (appCfg.BcryptCost < bcrypt.MinCost || appCfg.BcryptCost > bcrypt.MaxCost) {
		return fmt.Errorf("bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if !auditlog.ValidMode(appCfg.AuditLogAuth) {
		return fmt.Errorf("audit_log_auth must be all, db, log or off, got %q", appCfg.AuditLogAuth)
	}
	if !auditlog.ValidMode(appCfg.AuditLogAdmin) {
		return fmt.Errorf("audit_log_admin must be all, db, log or off, got %q", appCfg.AuditLogAdmin)
	}

	return nil
}

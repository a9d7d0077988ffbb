// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (PRODUCTHUB_*), configuration
// files, or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig
// covers ports, TLS, logging and CORS; everything specific to ProductHub
// lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: producthub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Change feed: "streams" (Mongo change streams, needs a replica set),
	// "redis" (pub/sub between instances) or "local" (single process).
	ChangeFeed    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	// Live dashboard
	LiveStatsTimeout time.Duration // bound on one recompute
	RecentProducts   int           // length of the recent-products list

	// Base URL used to build the Google OAuth callback
	BaseURL string // e.g., "https://producthub.example.com" or "http://localhost:8080"

	// Google OAuth configuration (sign-in disabled when the client id is blank)
	GoogleClientID     string
	GoogleClientSecret string

	// Password hashing cost for sign-up
	BcryptCost int

	// Login history retention; older records are pruned daily.
	LoginRetention time.Duration

	// Audit trail: per-category mode ("all", "db", "log" or "off") and
	// how long stored events are kept.
	AuditLogAuth   string
	AuditLogAdmin  string
	AuditRetention time.Duration

	// Admin bootstrap: promotes (or creates) this account as admin on startup.
	AdminEmail string
}

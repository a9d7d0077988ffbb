package bootstrap

import "github.com/dalemusser/waffle/app"

// Hooks is handed to app.Run by cmd/producthub. WAFFLE calls them in
// field order: config is loaded and validated, MongoDB is connected (plus
// Redis when change_feed is redis), collections and indexes are ensured,
// the seed admin and background jobs are set up, then BuildHandler creates
// the live-stats registry and router. Shutdown stops the jobs and closes
// both clients.
var Hooks = app.Hooks[AppConfig, DBDeps]{
	Name:           "producthub",
	LoadConfig:     LoadConfig,
	ValidateConfig: ValidateConfig,
	ConnectDB:      ConnectDB,
	EnsureSchema:   EnsureSchema,
	Startup:        Startup,
	BuildHandler:   BuildHandler,
	Shutdown:       Shutdown,
}

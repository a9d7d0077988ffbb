// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/producthub/internal/app/features/messages"
	"github.com/dalemusser/producthub/internal/app/system/changefeed"
	"github.com/dalemusser/producthub/internal/app/system/livestats"
	"github.com/dalemusser/producthub/internal/app/system/tasks"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	ProductHubMongoClient   *mongo.Client
	ProductHubMongoDatabase *mongo.Database

	// Redis is nil unless change_feed=redis.
	Redis *redis.Client

	// Feed carries collection-level change notifications from the stores to
	// the live dashboard.
	Feed changefeed.Feed

	// rt holds components built after ConnectDB that Shutdown must stop.
	// Hooks receive DBDeps by value, so it is shared through a pointer.
	rt *runtimeDeps
}

type runtimeDeps struct {
	runner   *tasks.Runner
	stats    *livestats.Registry
	messages *messages.Handler
	closers  []func() error
}

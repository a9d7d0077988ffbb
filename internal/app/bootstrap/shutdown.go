// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops live sessions and background work, then tears down the
// change feed and DB connections.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if rt := deps.rt; rt != nil {
		if rt.stats != nil {
			logger.Info("closing live dashboard sessions", zap.Int("sessions", rt.stats.Len()))
			rt.stats.Close()
		}
		if rt.runner != nil {
			rt.runner.Stop()
		}
		if rt.messages != nil {
			rt.messages.Wait()
		}
		for _, c := range rt.closers {
			if err := c(); err != nil {
				logger.Warn("close failed", zap.Error(err))
			}
		}
	}

	if deps.ProductHubMongoClient != nil {
		logger.Info("disconnecting ProductHub MongoDB client")
		if err := deps.ProductHubMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}

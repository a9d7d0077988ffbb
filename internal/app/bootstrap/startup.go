// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/producthub/internal/app/store/audit"
	loginstore "github.com/dalemusser/producthub/internal/app/store/logins"
	"github.com/dalemusser/producthub/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/producthub/internal/app/store/users"
	"github.com/dalemusser/producthub/internal/app/system/normalize"
	"github.com/dalemusser/producthub/internal/app/system/tasks"
	"github.com/dalemusser/producthub/internal/app/system/timeouts"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n))
	}

	if appCfg.AdminEmail != "" {
		if err := ensureAdmin(ctx, deps, appCfg.AdminEmail, logger); err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
	}

	db := deps.ProductHubMongoDatabase
	jobs := []tasks.Job{
		tasks.OAuthStateCleanupJob(oauthstate.New(db), logger),
		tasks.LoginRecordPruneJob(loginstore.New(db), logger, appCfg.LoginRetention),
	}
	if appCfg.AuditRetention > 0 {
		jobs = append(jobs, tasks.AuditPruneJob(audit.New(db), logger, appCfg.AuditRetention))
	}
	runner := tasks.NewRunner(logger, jobs...)
	runner.Start()
	if deps.rt != nil {
		deps.rt.runner = runner
	}
	return nil
}

// ensureAdmin promotes the account with email to admin, creating it when it
// does not exist. A created account has no password and signs in with
// Google.
func ensureAdmin(ctx context.Context, deps DBDeps, email string, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	users := userstore.New(deps.ProductHubMongoDatabase, deps.Feed)
	email = normalize.Email(email)

	u, err := users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		created, err := users.Create(ctx, models.User{
			Email:       email,
			DisplayName: "Administrator",
			Role:        models.RoleAdmin,
		})
		if err != nil {
			return err
		}
		logger.Info("created admin account", zap.String("email", email), zap.String("user_id", created.ID.Hex()))
		return nil
	case err != nil:
		return err
	}

	if u.Role == models.RoleAdmin {
		return nil
	}
	if err := users.UpdateRole(ctx, u.ID, models.RoleAdmin); err != nil {
		return err
	}
	logger.Info("promoted account to admin",
		zap.String("email", email),
		zap.String("previous_role", string(u.Role)))
	return nil
}

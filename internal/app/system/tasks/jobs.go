// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiredStateCleaner is implemented by the OAuth state store.
type ExpiredStateCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Pruner is implemented by stores whose records expire by age (login
// records, audit events).
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OAuthStateCleanupJob removes expired OAuth state tokens. Backstop for the
// TTL index on oauth_states.
func OAuthStateCleanupJob(states ExpiredStateCleaner, logger *zap.Logger) Job {
	return Job{
		Name:     "oauth-state-cleanup",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := states.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleaned up expired OAuth states", zap.Int64("count", count))
			}
			return nil
		},
	}
}

// LoginRecordPruneJob deletes login records older than retention.
func LoginRecordPruneJob(logins Pruner, logger *zap.Logger, retention time.Duration) Job {
	return pruneJob("login-record-prune", "pruned login records", logins, logger, retention)
}

// AuditPruneJob deletes audit events older than retention.
func AuditPruneJob(events Pruner, logger *zap.Logger, retention time.Duration) Job {
	return pruneJob("audit-prune", "pruned audit events", events, logger, retention)
}

func pruneJob(name, msg string, p Pruner, logger *zap.Logger, retention time.Duration) Job {
	return Job{
		Name:     name,
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := p.PruneBefore(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Info(msg,
					zap.Int64("count", count),
					zap.Duration("retention", retention))
			}
			return nil
		},
	}
}

package changefeed

import (
	"context"

	"go.uber.org/zap"
)

// Notify publishes collection on pub after a successful write. A nil pub is
// a no-op. Publish failures are logged, not returned: the write already
// happened and subscribers catch up on the next change.
func Notify(ctx context.Context, pub Publisher, collection string) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, collection); err != nil {
		zap.L().Warn("change notification failed",
			zap.String("collection", collection),
			zap.Error(err))
	}
}

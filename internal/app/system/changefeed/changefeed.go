// Package changefeed delivers collection-level change notifications.
//
// A notification carries only the collection name; subscribers treat it as
// an invalidation signal and re-read whatever they need.
//
// Three implementations are provided:
//   - Hub: in-process fan-out, for single-instance deployments and tests.
//   - Redis: go-redis pub/sub between instances, delivered through a Hub.
//   - Streams: MongoDB change streams (requires a replica set).
package changefeed

import "context"

// Subscriber registers onChange for every change to collection. The returned
// cancel func detaches the listener synchronously and is safe to call more
// than once.
type Subscriber interface {
	Subscribe(ctx context.Context, collection string, onChange func()) (cancel func(), err error)
}

// Publisher announces that collection has changed.
type Publisher interface {
	Publish(ctx context.Context, collection string) error
}

// Feed is both ends of a change feed.
type Feed interface {
	Subscriber
	Publisher
}

// Kinds accepted by the change_feed config key.
const (
	KindStreams = "streams"
	KindRedis   = "redis"
	KindLocal   = "local"
)

// IsValidKind reports whether k names a supported feed implementation.
func IsValidKind(k string) bool {
	switch k {
	case KindStreams, KindRedis, KindLocal:
		return true
	}
	return false
}

package changefeed

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis carries change notifications between instances over a Redis pub/sub
// channel. The message payload is the collection name. Every instance,
// including the publisher, receives its own publications through the
// channel and fans them out to local listeners via an embedded Hub.
type Redis struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     *zap.Logger

	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
}

// NewRedis subscribes to channel and starts the receive loop. Close stops it.
func NewRedis(ctx context.Context, client *redis.Client, channel string, logger *zap.Logger) (*Redis, error) {
	ps := client.Subscribe(ctx, channel)
	// Wait for the subscription confirmation so publications made right
	// after NewRedis returns are not missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	r := &Redis{
		client:  client,
		channel: channel,
		hub:     NewHub(),
		log:     logger,
		pubsub:  ps,
		done:    make(chan struct{}),
	}
	go r.run()

	logger.Info("redis change feed started", zap.String("channel", channel))
	return r, nil
}

func (r *Redis) run() {
	defer close(r.done)
	for msg := range r.pubsub.Channel() {
		r.hub.notify(msg.Payload)
	}
}

func (r *Redis) Subscribe(ctx context.Context, collection string, onChange func()) (func(), error) {
	return r.hub.Subscribe(ctx, collection, onChange)
}

func (r *Redis) Publish(ctx context.Context, collection string) error {
	return r.client.Publish(ctx, r.channel, collection).Err()
}

// Close unsubscribes from Redis and waits for the receive loop to exit.
// It does not close the underlying client.
func (r *Redis) Close() error {
	var err error
	r.once.Do(func() {
		err = r.pubsub.Close()
		<-r.done
		r.log.Info("redis change feed stopped", zap.String("channel", r.channel))
	})
	return err
}

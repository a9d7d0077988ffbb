package changefeed_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/dalemusser/producthub/internal/app/system/changefeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesOnlyThatCollection(t *testing.T) {
	hub := changefeed.NewHub()
	ctx := context.Background()

	var products, tasks atomic.Int32
	_, err := hub.Subscribe(ctx, "products", func() { products.Add(1) })
	require.NoError(t, err)
	_, err = hub.Subscribe(ctx, "tasks", func() { tasks.Add(1) })
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, "products"))
	require.NoError(t, hub.Publish(ctx, "products"))

	assert.Equal(t, int32(2), products.Load())
	assert.Equal(t, int32(0), tasks.Load())
}

func TestHub_CancelDetachesAndIsIdempotent(t *testing.T) {
	hub := changefeed.NewHub()
	ctx := context.Background()

	var n atomic.Int32
	cancel, err := hub.Subscribe(ctx, "users", func() { n.Add(1) })
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Listeners("users"))

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Listeners("users"))

	require.NoError(t, hub.Publish(ctx, "users"))
	assert.Equal(t, int32(0), n.Load())
}

func TestHub_ListenerMaySubscribeDuringPublish(t *testing.T) {
	hub := changefeed.NewHub()
	ctx := context.Background()

	var inner atomic.Int32
	_, err := hub.Subscribe(ctx, "tasks", func() {
		_, _ = hub.Subscribe(ctx, "tasks", func() { inner.Add(1) })
	})
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, "tasks"))
	assert.Equal(t, 2, hub.Listeners("tasks"))
	assert.Equal(t, int32(0), inner.Load())
}

func TestIsValidKind(t *testing.T) {
	for _, k := range []string{changefeed.KindStreams, changefeed.KindRedis, changefeed.KindLocal} {
		assert.True(t, changefeed.IsValidKind(k), k)
	}
	assert.False(t, changefeed.IsValidKind("kafka"))
	assert.False(t, changefeed.IsValidKind(""))
}

package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"devsnippet/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNotifier_NilIsNoop(t *testing.T) {
	var n *Notifier
	assert.NoError(t, n.PublishPostEvent(context.Background(), PostEvent{Type: EventPostCreated}))
	assert.NoError(t, NewNotifier(nil, nil).StartFeedSubscriber(context.Background(), func([]byte) {}))
}

func TestNotifier_LocalFallback(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register("u1", nil)
	require.NoError(t, err)

	n := NewNotifier(nil, hub)
	post := &models.Post{ID: "p1", Title: "t"}
	require.NoError(t, n.PublishPostEvent(context.Background(), NewPostEvent(EventPostLiked, post, "u2")))

	var ev PostEvent
	require.NoError(t, json.Unmarshal(<-c.Send, &ev))
	assert.Equal(t, EventPostLiked, ev.Type)
	assert.Equal(t, "p1", ev.PostID)
	assert.Equal(t, "u2", ev.ActorID)
}

func TestHub_StartWiringFansOutRedisEvents(t *testing.T) {
	rdb := newTestRedis(t)
	hub := NewHub()
	c, err := hub.Register("u1", nil)
	require.NoError(t, err)

	n := NewNotifier(rdb, hub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, n))

	require.NoError(t, n.PublishPostEvent(context.Background(), NewPostEvent(EventPostDeleted, &models.Post{ID: "p9"}, "u1")))

	select {
	case raw := <-c.Send:
		var ev PostEvent
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, EventPostDeleted, ev.Type)
		assert.Equal(t, "p9", ev.PostID)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("feed event was not delivered")
	}
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb, nil)

	ctx, cancel := context.WithCancel(context.Background())
	payloads := make(chan string, 4)
	require.NoError(t, n.StartFeedSubscriber(ctx, func(p []byte) { payloads <- string(p) }))

	require.NoError(t, n.PublishPostEvent(context.Background(), PostEvent{Type: EventPostCreated, PostID: "before"}))
	assert.Eventually(t, func() bool { return len(payloads) == 1 }, testEventuallyTimeout, testPollInterval)
	<-payloads

	cancel()
	time.Sleep(20 * time.Millisecond)

	_ = n.PublishPostEvent(context.Background(), PostEvent{Type: EventPostCreated, PostID: "after"})
	assert.Never(t, func() bool { return len(payloads) > 0 }, 10*testPollInterval, testPollInterval)
}

func TestNotifier_SubscriberRecoversFromPanic(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 2)
	require.NoError(t, n.StartFeedSubscriber(ctx, func([]byte) {
		calls <- struct{}{}
		panic("boom")
	}))

	require.NoError(t, n.PublishPostEvent(context.Background(), PostEvent{Type: EventPostCreated}))
	require.NoError(t, n.PublishPostEvent(context.Background(), PostEvent{Type: EventPostCreated}))
	assert.Eventually(t, func() bool { return len(calls) == 2 }, testEventuallyTimeout, testPollInterval)
}

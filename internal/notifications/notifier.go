package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"devsnippet/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// FeedChannel is the Redis channel every API instance publishes post events on.
const FeedChannel = "feed:posts"

// Notifier publishes post events. With Redis, events fan out to every API
// instance; without it they go straight to the local hub.
type Notifier struct {
	rdb   *redis.Client
	local *Hub
}

// NewNotifier creates a Notifier; rdb and local may each be nil.
func NewNotifier(rdb *redis.Client, local *Hub) *Notifier {
	return &Notifier{rdb: rdb, local: local}
}

// PublishPostEvent encodes ev and delivers it to feed subscribers.
func (n *Notifier) PublishPostEvent(ctx context.Context, ev PostEvent) error {
	if n == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal post event: %w", err)
	}
	if n.rdb != nil {
		return n.rdb.Publish(ctx, FeedChannel, payload).Err()
	}
	if n.local != nil {
		n.local.BroadcastAll(payload)
	}
	return nil
}

// StartFeedSubscriber subscribes to FeedChannel and calls onMessage for each
// payload until ctx is cancelled.
func (n *Notifier) StartFeedSubscriber(ctx context.Context, onMessage func(payload []byte)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, FeedChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", FeedChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in feed subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage([]byte(msg.Payload))
				}()
			}
		}
	}()

	return nil
}

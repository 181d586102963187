package cache

import (
	"context"
	"time"
)

const (
	UserKeyPrefix = "user:"
	PostKeyPrefix = "post:"
)

const (
	UserTTL = 5 * time.Minute
	PostTTL = 2 * time.Minute
)

func UserKey(userID string) string {
	return UserKeyPrefix + userID
}

func PostKey(postID string) string {
	return PostKeyPrefix + postID
}

// Invalidate deletes keys, ignoring a missing client.
func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID string) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidatePost(ctx context.Context, postIDs ...string) {
	keys := make([]string, 0, len(postIDs))
	for _, id := range postIDs {
		keys = append(keys, PostKey(id))
	}
	Invalidate(ctx, keys...)
}

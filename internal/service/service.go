// Package service holds the business rules behind the HTTP handlers and the offline jobs.
package service

import (
	"context"
	"log/slog"

	"devsnippet/internal/middleware"
	"devsnippet/internal/models"
	"devsnippet/internal/notifications"
)

// Page bounds a list query. A zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

// EventPublisher receives post events for live feed subscribers.
type EventPublisher interface {
	PublishPostEvent(ctx context.Context, ev notifications.PostEvent) error
}

// MediaReleaser deletes hosted assets without blocking the caller.
type MediaReleaser interface {
	Release(ctx context.Context, ref models.MediaRef)
	ReleaseAll(ctx context.Context, refs []models.MediaRef)
}

func publish(ctx context.Context, events EventPublisher, ev notifications.PostEvent) {
	if events == nil {
		return
	}
	if err := events.PublishPostEvent(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish post event",
			slog.String("type", ev.Type),
			slog.String("post_id", ev.PostID),
			slog.String("error", err.Error()),
		)
	}
}

// MediaReferenceCounter counts the posts and avatars holding an asset.
type MediaReferenceCounter interface {
	CountMediaReferences(ctx context.Context, publicID string) (int64, error)
}

// release hands assets to the releaser, skipping any that another record still
// holds. selfHeld is how many of those references the caller has not yet dropped.
// A failed lookup keeps the asset.
func release(ctx context.Context, refs MediaReferenceCounter, releaser MediaReleaser, selfHeld int64, assets ...models.MediaRef) {
	if releaser == nil || len(assets) == 0 {
		return
	}
	free := make([]models.MediaRef, 0, len(assets))
	for _, ref := range assets {
		n, err := refs.CountMediaReferences(ctx, ref.PublicID)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "media reference check failed, keeping asset",
				slog.String("public_id", ref.PublicID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if n > selfHeld {
			middleware.Logger.InfoContext(ctx, "media still referenced, not released",
				slog.String("public_id", ref.PublicID),
				slog.Int64("references", n),
			)
			continue
		}
		free = append(free, ref)
	}
	if len(free) > 0 {
		releaser.ReleaseAll(ctx, free)
	}
}

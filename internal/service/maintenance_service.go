package service

import (
	"context"
	"log/slog"

	"devsnippet/internal/media"
	"devsnippet/internal/middleware"
	"devsnippet/internal/observability"
	"devsnippet/internal/repository"
)

const defaultReconcileLimit = 100

// MaintenanceService runs the offline consistency jobs.
type MaintenanceService struct {
	posts    repository.PostRepository
	cleanups repository.MediaCleanupRepository
	delegate media.Delegate
}

type SweepResult struct {
	Deleted     int64 `json:"deleted"`
	MediaQueued int   `json:"mediaQueued"`
}

type ReconcileResult struct {
	Attempted int `json:"attempted"`
	Released  int `json:"released"`
	Failed    int `json:"failed"`
	// Kept counts entries dropped because the asset is referenced again.
	Kept int `json:"kept"`
}

func NewMaintenanceService(posts repository.PostRepository, cleanups repository.MediaCleanupRepository, delegate media.Delegate) *MaintenanceService {
	return &MaintenanceService{posts: posts, cleanups: cleanups, delegate: delegate}
}

// SweepOrphanPosts deletes posts whose author no longer exists and queues their media.
// Running it again immediately deletes nothing.
func (s *MaintenanceService) SweepOrphanPosts(ctx context.Context) (result SweepResult, err error) {
	ctx, span := observability.StartSpan(ctx, "maintenance.sweep_orphans")
	defer func() { observability.EndSpan(span, err) }()

	orphans, err := s.posts.FindOrphans(ctx)
	if err != nil {
		return result, err
	}
	if len(orphans) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(orphans))
	for _, p := range orphans {
		ids = append(ids, p.ID)
	}
	deleted, err := s.posts.DeleteMany(ctx, ids)
	if err != nil {
		return result, err
	}
	result.Deleted = deleted
	observability.OrphanPostsSwept.Add(float64(deleted))

	for _, p := range orphans {
		if !p.HasMedia() {
			continue
		}
		if err := s.cleanups.Enqueue(ctx, p.MediaRef(), "orphan sweep"); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to queue orphan media",
				slog.String("post_id", p.ID),
				slog.String("public_id", p.MediaPublicID),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.MediaQueued++
	}

	middleware.Logger.InfoContext(ctx, "orphan sweep finished",
		slog.Int64("deleted", result.Deleted),
		slog.Int("media_queued", result.MediaQueued),
	)
	return result, nil
}

// ReconcileMedia retries queued media deletions, oldest first.
func (s *MaintenanceService) ReconcileMedia(ctx context.Context, limit int) (result ReconcileResult, err error) {
	ctx, span := observability.StartSpan(ctx, "maintenance.reconcile_media")
	defer func() { observability.EndSpan(span, err) }()

	if limit <= 0 {
		limit = defaultReconcileLimit
	}

	due, err := s.cleanups.ListDue(ctx, limit)
	if err != nil {
		return result, err
	}

	for _, entry := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Attempted++

		refs, err := s.posts.CountMediaReferences(ctx, entry.PublicID)
		if err != nil {
			return result, err
		}
		if refs > 0 {
			if err := s.cleanups.MarkDone(ctx, entry.ID); err != nil {
				return result, err
			}
			result.Kept++
			continue
		}

		if err := s.delegate.Delete(ctx, entry.Ref()); err != nil {
			result.Failed++
			if markErr := s.cleanups.MarkFailed(ctx, entry.ID, err.Error()); markErr != nil {
				return result, markErr
			}
			continue
		}
		if err := s.cleanups.MarkDone(ctx, entry.ID); err != nil {
			return result, err
		}
		result.Released++
	}

	if result.Attempted > 0 {
		middleware.Logger.InfoContext(ctx, "media reconciliation finished",
			slog.Int("attempted", result.Attempted),
			slog.Int("released", result.Released),
			slog.Int("failed", result.Failed),
			slog.Int("kept", result.Kept),
		)
	}
	return result, nil
}

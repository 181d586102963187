package media

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"devsnippet/internal/middleware"
	"devsnippet/internal/models"
	"devsnippet/internal/observability"
)

// CleanupQueue parks releases that failed so they can be retried later.
type CleanupQueue interface {
	Enqueue(ctx context.Context, ref models.MediaRef, cause string) error
}

// Releaser performs best-effort, fire-and-forget asset deletion.
type Releaser struct {
	delegate Delegate
	queue    CleanupQueue
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewReleaser returns a releaser; queue may be nil.
func NewReleaser(delegate Delegate, queue CleanupQueue, timeout time.Duration) *Releaser {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Releaser{delegate: delegate, queue: queue, timeout: timeout}
}

// Release deletes ref in the background. It outlives the caller's context and
// never reports failure to the caller.
func (r *Releaser) Release(ctx context.Context, ref models.MediaRef) {
	if r == nil || ref.PublicID == "" {
		return
	}
	detached := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.release(detached, ref)
	}()
}

// ReleaseAll releases every ref.
func (r *Releaser) ReleaseAll(ctx context.Context, refs []models.MediaRef) {
	for _, ref := range refs {
		r.Release(ctx, ref)
	}
}

func (r *Releaser) release(ctx context.Context, ref models.MediaRef) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.delegate.Delete(ctx, ref)
	if err == nil {
		middleware.Logger.DebugContext(ctx, "media released",
			slog.String("public_id", ref.PublicID),
			slog.String("resource_type", ref.ResourceType),
		)
		return
	}

	middleware.Logger.WarnContext(ctx, "media release failed",
		slog.String("public_id", ref.PublicID),
		slog.String("resource_type", ref.ResourceType),
		slog.String("error", err.Error()),
	)
	if r.queue == nil {
		return
	}

	qctx, qcancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer qcancel()
	if qerr := r.queue.Enqueue(qctx, ref, err.Error()); qerr != nil {
		middleware.Logger.ErrorContext(ctx, "failed to queue media cleanup",
			slog.String("public_id", ref.PublicID),
			slog.String("error", qerr.Error()),
		)
		return
	}
	observability.MediaCleanupQueued.Inc()
}

// Wait blocks until in-flight releases finish.
func (r *Releaser) Wait() {
	if r != nil {
		r.wg.Wait()
	}
}

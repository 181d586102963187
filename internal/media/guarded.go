package media

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"devsnippet/internal/middleware"
	"devsnippet/internal/models"
	"devsnippet/internal/observability"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultTimeout bounds a single delegate call when none is configured.
const DefaultTimeout = 10 * time.Second

// Guarded wraps a delegate with a per-call timeout and a circuit breaker.
type Guarded struct {
	next    Delegate
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewGuarded wraps next. A zero timeout falls back to DefaultTimeout.
func NewGuarded(next Delegate, timeout time.Duration) *Guarded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	st := gobreaker.Settings{
		Name:        "MediaDelegate",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			middleware.Logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	return &Guarded{next: next, cb: gobreaker.NewCircuitBreaker(st), timeout: timeout}
}

// Upload rejects unsupported types before they can count against the breaker.
func (g *Guarded) Upload(ctx context.Context, in UploadInput) (*Asset, error) {
	if _, err := ResourceTypeFor(in.ContentType); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "media.upload",
		attribute.String("media.content_type", in.ContentType),
		attribute.Int64("media.size", in.Size),
	)
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Upload(ctx, in)
	})
	observe("upload", err)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return res.(*Asset), nil
}

func (g *Guarded) Delete(ctx context.Context, ref models.MediaRef) error {
	ctx, span := observability.StartSpan(ctx, "media.delete",
		attribute.String("media.public_id", ref.PublicID),
	)
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.next.Delete(ctx, ref)
	})
	observe("delete", err)
	observability.EndSpan(span, err)
	return err
}

// State exposes the breaker state for readiness reporting.
func (g *Guarded) State() string {
	return g.cb.State().String()
}

func observe(op string, err error) {
	observability.MediaDelegateOps.WithLabelValues(op, outcomeOf(err)).Inc()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

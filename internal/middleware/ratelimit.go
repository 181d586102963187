package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"devsnippet/internal/models"
	"devsnippet/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

var errNoRedis = errors.New("rate limit: redis client is nil")

// Quota is the outcome of one counted request in a fixed window.
type Quota struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

func limiterBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development":
		return true
	}
	return false
}

// CheckRateLimit counts one request from id against resource. The window key is
// created with its expiry in the same MULTI as the increment, so it never lives
// without a TTL.
// Counting is skipped outside production-like environments.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (Quota, error) {
	if limiterBypassed() {
		return Quota{Allowed: true, Remaining: limit, ResetIn: window}, nil
	}
	if rdb == nil {
		return Quota{}, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, window)
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Quota{}, err
	}

	count := int(incr.Val())
	reset := ttl.Val()
	if reset <= 0 {
		reset = window
	}
	return Quota{
		Allowed:   count <= limit,
		Remaining: max(limit-count, 0),
		ResetIn:   reset,
	}, nil
}

// RateLimit allows limit requests per window for each caller, failing open.
// Callers are keyed by user id once a session is resolved, else by IP.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit failure policy.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := "ip:" + c.IP()
		if uid, ok := c.Locals(LocalUserID).(string); ok && uid != "" {
			caller = "user:" + uid
		}
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		quota, err := CheckRateLimit(c.UserContext(), rdb, resource, caller, limit, window)
		if err != nil {
			if policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable, refusing request",
				slog.String("resource", resource),
				slog.String("error", err.Error()),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Message: "Rate limit unavailable",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(quota.Remaining))
		if !quota.Allowed {
			observability.RateLimitRejections.WithLabelValues(resource).Inc()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(quota.ResetIn.Seconds()))))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Message: "Too many requests, please try again later",
			})
		}
		return c.Next()
	}
}

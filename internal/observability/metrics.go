package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devsnippet_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// StoreQueryLatency records store operation latency by operation and collection.
	StoreQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devsnippet_store_query_latency_seconds",
		Help:    "Record store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "collection"})

	// MediaDelegateOps counts media delegate calls by operation and outcome.
	MediaDelegateOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devsnippet_media_delegate_ops_total",
		Help: "Media delegate calls by operation and outcome",
	}, []string{"op", "outcome"})

	// MediaCleanupQueued counts releases parked for reconciliation.
	MediaCleanupQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devsnippet_media_cleanup_queued_total",
		Help: "Media releases that failed and were queued for retry",
	})

	// LikeToggles counts like toggles by resulting state.
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devsnippet_like_toggles_total",
		Help: "Like toggles by resulting state",
	}, []string{"state"})

	// OrphanPostsSwept counts posts removed by the orphan sweep.
	OrphanPostsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devsnippet_orphan_posts_swept_total",
		Help: "Posts deleted because their author no longer exists",
	})

	// RateLimitRejections counts requests refused by the rate limiter.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devsnippet_rate_limit_rejections_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"resource"})

	// FeedConnections is the gauge of open feed websocket connections.
	FeedConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devsnippet_feed_connections",
		Help: "Number of open feed WebSocket connections",
	})

	// FeedBackpressureDrops counts events dropped for slow feed clients.
	FeedBackpressureDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devsnippet_feed_backpressure_drops_total",
		Help: "Feed events dropped due to a full client buffer",
	})
)

// TrackQuery returns a function that records store latency when called (e.g. defer).
func TrackQuery(operation, collection string) func() {
	start := time.Now()
	return func() {
		StoreQueryLatency.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
	}
}

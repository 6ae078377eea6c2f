// Package observability holds the Prometheus collectors shared by the server
// and the collector.
package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dora_http_requests_total",
		Help: "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dora_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	snapshotLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dora_snapshot_loads_total",
		Help: "Snapshot loads by result",
	}, []string{"result"})

	deriveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dora_derive_duration_seconds",
		Help:    "Metric derivation duration in seconds by window",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
	}, []string{"window"})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dora_cache_lookups_total",
		Help: "Cache lookups by namespace and result",
	}, []string{"namespace", "result"})

	feedFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dora_feed_fetches_total",
		Help: "Repository summary feed fetches by period and result",
	}, []string{"period", "result"})
)

// Middleware records request count and latency per matched route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// SnapshotLoaded counts a snapshot load attempt
func SnapshotLoaded(err error) {
	snapshotLoadsTotal.WithLabelValues(result(err)).Inc()
}

// ObserveDerive records how long a derivation took
func ObserveDerive(window string, d time.Duration) {
	deriveDuration.WithLabelValues(window).Observe(d.Seconds())
}

// CacheLookup counts a cache hit or miss
func CacheLookup(namespace string, hit bool) {
	r := "miss"
	if hit {
		r = "hit"
	}
	cacheLookupsTotal.WithLabelValues(namespace, r).Inc()
}

// FeedFetched counts a summary feed fetch
func FeedFetched(period int, err error) {
	feedFetchesTotal.WithLabelValues(strconv.Itoa(period), result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "workshop_ws_connections",
		Help: "Current number of active websocket connections",
	})
	WsMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "workshop_ws_messages_total",
		Help: "Total number of websocket messages handled",
	})
	AICallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_ai_calls_total",
		Help: "Total number of LLM calls by response type",
	}, []string{"response_type"})
	AICostTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "workshop_ai_cost_eur_total",
		Help: "Accumulated LLM spend in EUR across all users",
	})
	GalleryBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "workshop_gallery_batches_total",
		Help: "Total number of flushed gallery batch broadcasts",
	})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(WsConnections, WsMessagesTotal, AICallsTotal, AICostTotal, GalleryBatchesTotal, HttpRequestsTotal, HttpRequestDuration)
}

// GinMiddleware records basic request metrics for the Prometheus scrape.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}

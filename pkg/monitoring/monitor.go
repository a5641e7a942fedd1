package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_sessions_started_total",
			Help: "Sessions started, by activity kind",
		},
		[]string{"kind"},
	)

	SessionsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_sessions_completed_total",
			Help: "Sessions completed, by activity kind and outcome (submitted, expired, abandoned)",
		},
		[]string{"kind", "outcome"},
	)

	SessionScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "activity_session_score",
			Help:    "Scores of completed, non-abandoned sessions",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"kind"},
	)

	LiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "activity_sessions_live",
			Help: "Sessions held in memory",
		},
	)

	RecorderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_result_recorder_failures_total",
			Help: "Result recording failures, by sink",
		},
		[]string{"sink"},
	)

	HubConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "activity_ws_connections",
			Help: "Open session websocket connections",
		},
	)
)

var once sync.Once

func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			SessionsStarted,
			SessionsCompleted,
			SessionScore,
			LiveSessions,
			RecorderFailures,
			HubConnections,
		)
	})
}

// Outcome 将结果标志映射为指标标签
func Outcome(expired, abandoned bool) string {
	switch {
	case abandoned:
		return "abandoned"
	case expired:
		return "expired"
	}
	return "submitted"
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

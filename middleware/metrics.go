package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the HTTP and tracking collectors. Each instance owns its
// registry so routers built in tests do not collide.
type Metrics struct {
	Registry            *prometheus.Registry
	requestDuration     *prometheus.HistogramVec
	requestTotal        *prometheus.CounterVec
	InteractionsCounter *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		InteractionsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "component_interactions_tracked_total",
				Help: "Interaction events accepted by the track endpoint",
			},
			[]string{"user_type"},
		),
	}
	m.Registry.MustRegister(m.requestDuration, m.requestTotal, m.InteractionsCounter)
	return m
}

// Collect records duration and count for every request, labelled by route.
func (m *Metrics) Collect() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		m.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

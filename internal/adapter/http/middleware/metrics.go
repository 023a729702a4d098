package middleware

import (
	"strconv"
	"time"

	"github.com/aq2208/gorder-store/internal/adapter/observ"
	"github.com/gin-gonic/gin"
)

// Metrics records request count and latency per route template.
func Metrics(m *observ.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := float64(time.Since(start).Milliseconds())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		m.Requests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.Duration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

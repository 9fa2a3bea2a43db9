package middlewares

import (
	"strconv"
	"time"

	"github.com/sandor-zhong/baby-chengcheng/services"

	"github.com/gin-gonic/gin"
)

// Metrics observes request latency by route template, so /moments/7 and
// /moments/8 share a series.
func Metrics(m *services.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

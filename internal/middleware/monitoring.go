package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"tempmail/worker/internal/monitoring"
)

// HTTPMetrics HTTP 指标中间件，按路由模板统计
func HTTPMetrics(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}

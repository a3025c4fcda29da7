package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yourusername/ecommerce-api/pkg/metrics"
)

const metricsPath = "/metrics"

// Metrics учитывает запросы в Prometheus. Путь берется по шаблону маршрута,
// чтобы не плодить метки на каждый уникальный URL. Сам /metrics не учитывается.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == metricsPath {
			c.Next()
			return
		}
		done := metrics.RequestStarted()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		done(c.Request.Method, path, c.Writer.Status())
	}
}

package middleware

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-consul/health"
	"github.com/gin-gonic/gin"
)

// HealthCheckHandler 汇总健康检查，unhealthy 返回 503
func HealthCheckHandler(agg *health.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := agg.Check(c.Request.Context())
		status := http.StatusOK
		if !resp.IsHealthy() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}

// RegisterHealthRoutes 注册 GET /healthcheck 和 GET /ping
func RegisterHealthRoutes(router gin.IRouter, agg *health.Aggregator) {
	if agg == nil {
		return
	}
	router.GET("/healthcheck", HealthCheckHandler(agg))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong\n")
	})
}

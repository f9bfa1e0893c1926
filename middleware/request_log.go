package middleware

import (
	"time"

	"github.com/KOMKZ/go-yogan-consul/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogConfig 请求日志配置
type RequestLogConfig struct {
	SkipPaths []string
	Logger    *logger.CtxZapLogger // nil 使用 "gin-http"
}

// RequestLog 结构化请求日志
// 5xx 记 Error，4xx 记 Warn，其余 Info
//
//	engine.Use(middleware.RequestLog(middleware.RequestLogConfig{SkipPaths: []string{"/ping"}}))
func RequestLog(cfg RequestLogConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger("gin-http")
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("body_size", c.Writer.Size()),
		}
		if errMsg := c.Errors.ByType(gin.ErrorTypePrivate).String(); errMsg != "" {
			fields = append(fields, zap.String("error", errMsg))
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			log.ErrorCtx(ctx, "HTTP request", fields...)
		case status >= 400:
			log.WarnCtx(ctx, "HTTP request", fields...)
		default:
			log.InfoCtx(ctx, "HTTP request", fields...)
		}
	}
}

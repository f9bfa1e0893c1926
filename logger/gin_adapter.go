package logger

import (
	"strings"
)

// GinLogWriter 把 gin 的文本输出转成结构化日志（实现 io.Writer）
type GinLogWriter struct {
	module string
}

// NewGinLogWriter 创建 gin 日志适配器
//
//	gin.DefaultWriter = logger.NewGinLogWriter("gin-http")
func NewGinLogWriter(module string) *GinLogWriter {
	return &GinLogWriter{module: module}
}

// Write 路由注册日志记为 Debug，Recovery 记为 Error，其余 Info
func (w *GinLogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}

	switch {
	case strings.Contains(msg, "[GIN-debug]"):
		Debug(w.module, msg)
	case strings.Contains(msg, "[Recovery]"), strings.Contains(msg, "panic recovered"):
		Error(w.module, msg)
	default:
		Info(w.module, msg)
	}
	return len(p), nil
}

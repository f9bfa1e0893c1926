package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewObservedLogger 返回写入内存的 Logger，测试中用于断言日志
//
//	log, logs := logger.NewObservedLogger("consul", zapcore.DebugLevel)
//	svc := consul.NewAdvertiser(cfg, agent, id, consul.WithLogger(log))
//	assert.Equal(t, 1, logs.FilterMessageSnippet("already registered").Len())
func NewObservedLogger(module string, level zapcore.Level) (*CtxZapLogger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &CtxZapLogger{
		base:   zap.New(core).With(zap.String("module", module)),
		module: module,
	}, logs
}

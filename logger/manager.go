package logger

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager 管理多个模块的 Logger 实例
type Manager struct {
	cfg     ManagerConfig
	loggers map[string]*CtxZapLogger
	bases   map[string]*zap.Logger
	writers []*lumberjack.Logger
	mu      sync.RWMutex
}

var (
	globalManager *Manager
	managerMu     sync.Mutex
)

// NewManager 创建独立的 Manager，零值字段自动填充默认值
func NewManager(cfg ManagerConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		cfg:     cfg,
		loggers: make(map[string]*CtxZapLogger),
		bases:   make(map[string]*zap.Logger),
	}
}

// InitManager 初始化全局 Manager
// 重复调用会关闭旧实例并替换，应用启动读取到 logger 配置后调用
func InitManager(cfg ManagerConfig) {
	managerMu.Lock()
	defer managerMu.Unlock()
	if globalManager != nil {
		globalManager.CloseAll()
	}
	globalManager = NewManager(cfg)
}

func global() *Manager {
	managerMu.Lock()
	defer managerMu.Unlock()
	if globalManager == nil {
		globalManager = NewManager(DefaultManagerConfig())
	}
	return globalManager
}

// GetLogger 获取模块 Logger（线程安全，按需创建）
// 返回的 Logger 已带 module 字段
func (m *Manager) GetLogger(module string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[module]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.loggers[module]; ok {
		return l
	}

	base := m.createLogger(module).With(zap.String("module", module))
	l := &CtxZapLogger{
		base:   base.WithOptions(zap.AddCallerSkip(1)),
		module: module,
		config: &m.cfg,
	}
	m.loggers[module] = l
	m.bases[module] = base
	return l
}

func (m *Manager) createLogger(module string) *zap.Logger {
	encoder := newEncoder(m.cfg.Encoding)
	level := ParseLevel(m.cfg.Level)
	var cores []zapcore.Core

	if m.cfg.EnableConsole {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	if m.cfg.EnableFile {
		// info 文件只收 error 以下级别，error 单独成文件
		infoWriter := m.fileWriter(m.cfg.filePath(module, "info"))
		cores = append(cores, zapcore.NewCore(encoder, infoWriter,
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= level && lvl < zapcore.ErrorLevel
			})))

		errorWriter := m.fileWriter(m.cfg.filePath(module, "error"))
		cores = append(cores, zapcore.NewCore(encoder, errorWriter,
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.ErrorLevel && lvl >= level
			})))
	}

	if len(cores) == 0 {
		return zap.NewNop()
	}

	var opts []zap.Option
	if m.cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(cores...), opts...)
}

// fileWriter 使用 lumberjack 做文件切割
func (m *Manager) fileWriter(filename string) zapcore.WriteSyncer {
	_ = os.MkdirAll(filepath.Dir(filename), 0o755)
	lj := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    m.cfg.MaxSize,
		MaxBackups: m.cfg.MaxBackups,
		MaxAge:     m.cfg.MaxAge,
		Compress:   m.cfg.Compress,
		LocalTime:  true,
	}
	m.writers = append(m.writers, lj)
	return zapcore.AddSync(lj)
}

// CloseAll 刷新缓冲并关闭所有文件句柄
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.bases {
		_ = l.Sync()
	}
	for _, w := range m.writers {
		_ = w.Close()
	}
	m.loggers = make(map[string]*CtxZapLogger)
	m.bases = make(map[string]*zap.Logger)
	m.writers = nil
}

func newEncoder(encoding string) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		CallerKey:      "caller",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if encoding == "console" {
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// ============================================
// 包级便捷函数（委托给全局 Manager）
// ============================================

// GetLogger 获取模块 Logger
// 用法：
//
//	log := logger.GetLogger("consul")
//	log.InfoCtx(ctx, "Registering service", zap.String("id", id))
func GetLogger(module string) *CtxZapLogger {
	return global().GetLogger(module)
}

// CloseAll 关闭全局 Manager 的所有 Logger（应用退出时调用）
func CloseAll() {
	managerMu.Lock()
	m := globalManager
	managerMu.Unlock()
	if m != nil {
		m.CloseAll()
	}
}

// Info 记录 Info 日志
func Info(module, msg string, fields ...zap.Field) {
	GetLogger(module).InfoCtx(context.Background(), msg, fields...)
}

// Debug 记录 Debug 日志
func Debug(module, msg string, fields ...zap.Field) {
	GetLogger(module).DebugCtx(context.Background(), msg, fields...)
}

// Warn 记录 Warn 日志
func Warn(module, msg string, fields ...zap.Field) {
	GetLogger(module).WarnCtx(context.Background(), msg, fields...)
}

// Error 记录 Error 日志
func Error(module, msg string, fields ...zap.Field) {
	GetLogger(module).ErrorCtx(context.Background(), msg, fields...)
}

package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/KOMKZ/go-yogan-consul/httpx"
	"github.com/KOMKZ/go-yogan-consul/logger"
	"github.com/KOMKZ/go-yogan-consul/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// HTTPServer 单个连接器上的 gin 服务
type HTTPServer struct {
	name     string
	cfg      ConnectorConfig
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
	log      *logger.CtxZapLogger
	errCh    chan error
}

// NewHTTPServer 创建服务，Start 前可通过 Engine 注册路由
func NewHTTPServer(name string, cfg ConnectorConfig, engine *gin.Engine) *HTTPServer {
	return &HTTPServer{
		name:   name,
		cfg:    cfg,
		engine: engine,
		log:    logger.GetLogger("application"),
		errCh:  make(chan error, 1),
	}
}

// newEngine 创建 gin 引擎并按顺序挂载中间件
// otelgin 必须在 TraceID 之前，TraceID 必须在请求日志之前
func newEngine(serviceName string, server ServerConfig, mw *MiddlewareConfig) *gin.Engine {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	if server.Tracing {
		engine.Use(otelgin.Middleware(serviceName))
	}
	if mw != nil && mw.TraceID != nil && mw.TraceID.Enable {
		engine.Use(middleware.TraceID(middleware.TraceConfig{
			TraceIDKey:           mw.TraceID.TraceIDKey,
			TraceIDHeader:        mw.TraceID.TraceIDHeader,
			EnableResponseHeader: mw.TraceID.EnableResponseHeader,
		}))
	}
	if mw != nil && mw.RequestLog != nil && mw.RequestLog.Enable {
		engine.Use(middleware.RequestLog(middleware.RequestLogConfig{SkipPaths: mw.RequestLog.SkipPaths}))
	}
	engine.Use(middleware.Recovery(nil))

	engine.NoRoute(httpx.NoRouteHandler())
	engine.NoMethod(httpx.NoMethodHandler())
	return engine
}

// Engine gin 引擎
func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

// Start 绑定端口并在后台提供服务，返回时端口已可用
func (s *HTTPServer) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s connector on %s: %w", s.name, addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	go func() {
		var err error
		if s.cfg.TLS() {
			err = s.server.ServeTLS(ln, s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server stopped unexpectedly", zap.String("connector", s.name), zap.Error(err))
			s.errCh <- err
		}
	}()

	s.log.Debug("HTTP server started",
		zap.String("connector", s.name),
		zap.String("addr", ln.Addr().String()),
		zap.Bool("tls", s.cfg.TLS()))
	return nil
}

// Connector 绑定后的连接器描述（实际端口）
func (s *HTTPServer) Connector() Connector {
	c := Connector{Name: s.name, Host: s.cfg.Host, Port: s.cfg.Port, Protocols: []string{"http/1.1"}}
	if s.cfg.TLS() {
		c.Protocols = []string{"ssl", "http/1.1"}
	}
	if s.listener != nil {
		if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
			c.Port = tcp.Port
		}
	}
	return c
}

// Errors 服务异常退出时的错误
func (s *HTTPServer) Errors() <-chan error {
	return s.errCh
}

// Shutdown 优雅关闭
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown %s connector: %w", s.name, err)
	}
	s.log.Debug("HTTP server closed", zap.String("connector", s.name))
	return nil
}

package lbclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/KOMKZ/go-yogan-consul/balancer"
	"github.com/KOMKZ/go-yogan-consul/httpclient"
	"github.com/KOMKZ/go-yogan-consul/logger"
	"github.com/KOMKZ/go-yogan-consul/retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/KOMKZ/go-yogan-consul/lbclient"

// Balancer Client 依赖的负载均衡能力
type Balancer interface {
	Name() string
	Choose() *balancer.Server
	Servers(onlyAvailable bool) []*balancer.Server
	RecordResponseTime(server *balancer.Server, d time.Duration)
	Shutdown() error
}

// Client 负载均衡 HTTP 客户端
type Client struct {
	balancer      Balancer
	delegate      *httpclient.Client
	maxNextServer int
	log           *logger.CtxZapLogger
	tracer        trace.Tracer
}

// NewClient maxNextServer 为换实例重试次数
func NewClient(b Balancer, delegate *httpclient.Client, maxNextServer int) *Client {
	if maxNextServer < 0 {
		maxNextServer = 0
	}
	return &Client{
		balancer:      b,
		delegate:      delegate,
		maxNextServer: maxNextServer,
		log:           logger.GetLogger("lbclient"),
		tracer:        otel.Tracer(instrumentationName),
	}
}

// Name 服务名
func (c *Client) Name() string {
	return c.balancer.Name()
}

// Target 用选中的实例改写 URL；可传相对路径，如 /hello-world?name=x
func (c *Client) Target(rawURL string) (string, error) {
	server, err := c.choose()
	if err != nil {
		return "", err
	}
	return rewrite(rawURL, server)
}

func (c *Client) choose() (*balancer.Server, error) {
	server := c.balancer.Choose()
	if server == nil {
		return nil, ErrNoAvailableServers.WithMsgf("No available servers for %s", c.balancer.Name())
	}
	return server, nil
}

// nextServerCondition 只有传输错误才换实例重试
func nextServerCondition() retry.RetryCondition {
	return retry.And(
		retry.Not(retry.RetryOnErrors(ErrNoAvailableServers)),
		retry.RetryOnTemporaryError(),
	)
}

func rewrite(rawURL string, server *balancer.Server) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	switch {
	case server.Scheme != "":
		u.Scheme = server.Scheme
	case u.Scheme == "":
		u.Scheme = "http"
	}
	u.Host = server.HostPort()
	return u.String(), nil
}

// Do 发送请求，传输错误时换一个实例重试，最多 1+maxNextServer 次
// 收到响应（包括 5xx）即返回，并把耗时记入该实例的响应时间统计
func (c *Client) Do(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	resp, err := retry.DoWithData(ctx, func() (*httpclient.Response, error) {
		server, err := c.choose()
		if err != nil {
			return nil, err
		}
		target, err := rewrite(req.URL, server)
		if err != nil {
			return nil, err
		}
		resp, err := c.send(ctx, req, target)
		if err != nil {
			return nil, err
		}
		c.balancer.RecordResponseTime(server, resp.Duration)
		return resp, nil
	},
		retry.MaxAttempts(1+c.maxNextServer),
		retry.Backoff(retry.NoBackoff()),
		retry.Condition(nextServerCondition()),
		retry.OnRetry(func(attempt int, err error) {
			c.log.WarnCtx(ctx, "Request failed, retrying on next server",
				zap.String("name", c.balancer.Name()), zap.Int("attempt", attempt), zap.Error(err))
		}),
	)
	if err != nil {
		var multi *retry.MultiError
		if errors.As(err, &multi) {
			if multi.Attempts > 1 {
				c.log.WarnCtx(ctx, "Request failed on all attempted servers",
					zap.String("name", c.balancer.Name()), zap.String("errors", multi.Summary()))
			}
			return nil, multi.LastError()
		}
		return nil, err
	}
	return resp, nil
}

// send 每次尝试一个 span
func (c *Client) send(ctx context.Context, req *httpclient.Request, target string) (*httpclient.Response, error) {
	ctx, span := c.tracer.Start(ctx, "lbclient "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("lbclient.name", c.balancer.Name()),
			attribute.String("http.url", target)))
	defer span.End()

	attempt := req.Clone()
	attempt.URL = target
	resp, err := c.delegate.Do(ctx, attempt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, nil
}

// Get GET 请求
func (c *Client) Get(ctx context.Context, rawURL string) (*httpclient.Response, error) {
	return c.Do(ctx, httpclient.NewGetRequest(rawURL))
}

// AvailableServers 当前可用实例
func (c *Client) AvailableServers() []*balancer.Server {
	return c.balancer.Servers(true)
}

// Close 关闭底层 HTTP 客户端并停止服务列表刷新
func (c *Client) Close() error {
	return errors.Join(c.delegate.Close(), c.balancer.Shutdown())
}

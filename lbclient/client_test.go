package lbclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-consul/application"
	"github.com/KOMKZ/go-yogan-consul/balancer"
	"github.com/KOMKZ/go-yogan-consul/consul"
	"github.com/KOMKZ/go-yogan-consul/httpclient"
	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// stubBalancer 按顺序返回 servers，用完后循环
type stubBalancer struct {
	servers  []*balancer.Server
	next     atomic.Int64
	shutdown atomic.Int32

	mu      sync.Mutex
	latency map[string][]time.Duration
}

func (b *stubBalancer) Name() string { return "hello-world" }

func (b *stubBalancer) Choose() *balancer.Server {
	if len(b.servers) == 0 {
		return nil
	}
	i := b.next.Add(1) - 1
	return b.servers[int(i)%len(b.servers)]
}

func (b *stubBalancer) Servers(bool) []*balancer.Server { return b.servers }

func (b *stubBalancer) RecordResponseTime(server *balancer.Server, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latency == nil {
		b.latency = make(map[string][]time.Duration)
	}
	b.latency[server.HostPort()] = append(b.latency[server.HostPort()], d)
}

func (b *stubBalancer) recorded(server *balancer.Server) []time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latency[server.HostPort()]
}

func (b *stubBalancer) Shutdown() error {
	b.shutdown.Add(1)
	return nil
}

func backend(t *testing.T, body string) (*httptest.Server, *balancer.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body + " " + r.URL.RequestURI()))
	}))
	t.Cleanup(srv.Close)
	return srv, serverFor(t, srv.Listener.Addr().String())
}

func serverFor(t *testing.T, addr string) *balancer.Server {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return &balancer.Server{Scheme: "http", Host: host, Port: port, ReadyToServe: true}
}

// deadServer 一个已关闭的端口
func deadServer(t *testing.T) *balancer.Server {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return serverFor(t, addr)
}

func TestClient_Target(t *testing.T) {
	lb := &stubBalancer{servers: []*balancer.Server{{Scheme: "https", Host: "10.0.0.1", Port: 8443}}}
	c := NewClient(lb, httpclient.NewClient(), 0)

	got, err := c.Target("/hello-world?name=x")
	require.NoError(t, err)
	assert.Equal(t, "https://10.0.0.1:8443/hello-world?name=x", got)

	got, err = c.Target("http://placeholder/path")
	require.NoError(t, err)
	assert.Equal(t, "https://10.0.0.1:8443/path", got)

	lb.servers = []*balancer.Server{{Host: "10.0.0.2", Port: 80}}
	got, err = c.Target("/a")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:80/a", got, "实例没有 scheme 时默认 http")

	_, err = c.Target("://bad")
	assert.Error(t, err)
}

func TestClient_NoAvailableServers(t *testing.T) {
	c := NewClient(&stubBalancer{}, httpclient.NewClient(), 2)

	_, err := c.Target("/x")
	assert.ErrorIs(t, err, ErrNoAvailableServers)
	assert.Contains(t, err.Error(), "No available servers for hello-world")

	_, err = c.Get(context.Background(), "/x")
	assert.ErrorIs(t, err, ErrNoAvailableServers)
}

func TestClient_Do(t *testing.T) {
	_, s1 := backend(t, "one")
	_, s2 := backend(t, "two")
	c := NewClient(&stubBalancer{servers: []*balancer.Server{s1, s2}}, httpclient.NewClient(), 0)

	resp, err := c.Get(context.Background(), "/hello-world?name=a")
	require.NoError(t, err)
	assert.Equal(t, "one /hello-world?name=a", resp.String())

	resp, err = c.Do(context.Background(), httpclient.NewGetRequest("/hello-world"))
	require.NoError(t, err)
	assert.Equal(t, "two /hello-world", resp.String())
	assert.Equal(t, "hello-world", c.Name())
	assert.Len(t, c.AvailableServers(), 2)
}

func TestClient_RetriesNextServer(t *testing.T) {
	_, live := backend(t, "live")
	lb := &stubBalancer{servers: []*balancer.Server{deadServer(t), live}}

	resp, err := NewClient(lb, httpclient.NewClient(), 1).Get(context.Background(), "/ping")
	require.NoError(t, err)
	assert.Equal(t, "live /ping", resp.String())

	lb = &stubBalancer{servers: []*balancer.Server{deadServer(t), live}}
	_, err = NewClient(lb, httpclient.NewClient(), 0).Get(context.Background(), "/ping")
	assert.Error(t, err, "不换实例重试时直接失败")
}

func TestClient_NonTransportErrorNotRetried(t *testing.T) {
	_, s1 := backend(t, "one")
	_, s2 := backend(t, "two")
	lb := &stubBalancer{servers: []*balancer.Server{s1, s2}}

	var hookCalls atomic.Int32
	hookErr := errors.New("sign failed")
	delegate := httpclient.NewClient(httpclient.WithBeforeRequest(func(*http.Request) error {
		hookCalls.Add(1)
		return hookErr
	}))

	_, err := NewClient(lb, delegate, 3).Get(context.Background(), "/ping")
	assert.ErrorIs(t, err, hookErr)
	assert.Equal(t, int32(1), hookCalls.Load(), "非网络错误不换实例")
	assert.Equal(t, int64(1), lb.next.Load())
}

func TestClient_RecordsResponseTime(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(slow.Close)
	s := serverFor(t, slow.Listener.Addr().String())
	dead := deadServer(t)
	lb := &stubBalancer{servers: []*balancer.Server{dead, s}}

	resp, err := NewClient(lb, httpclient.NewClient(), 1).Get(context.Background(), "/slow")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, "5xx 原样返回")

	assert.Empty(t, lb.recorded(dead), "没拿到响应不记录")
	got := lb.recorded(s)
	require.Len(t, got, 1)
	assert.GreaterOrEqual(t, got[0], 20*time.Millisecond)
}

func TestClient_Close(t *testing.T) {
	lb := &stubBalancer{}
	require.NoError(t, NewClient(lb, httpclient.NewClient(), 0).Close())
	assert.Equal(t, int32(1), lb.shutdown.Load())
}

type lifecycle struct {
	mu      sync.Mutex
	managed []application.Managed
}

func (l *lifecycle) Manage(m application.Managed) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.managed = append(l.managed, m)
}

// healthAgent 只实现 HealthyServiceInstances
type healthAgent struct {
	consul.Agent
	entries []*api.ServiceEntry
}

func (a *healthAgent) HealthyServiceInstances(context.Context, string) ([]*api.ServiceEntry, error) {
	return a.entries, nil
}

func TestBuilder_Build(t *testing.T) {
	_, s := backend(t, "consul")
	agent := &healthAgent{entries: []*api.ServiceEntry{{
		Node:    &api.Node{Address: s.Host, Datacenter: "dc1"},
		Service: &api.AgentService{Port: s.Port, Meta: map[string]string{"scheme": "http"}},
	}}}
	lc := &lifecycle{}

	cfg := DefaultConfig()
	cfg.Headers = map[string]string{"X-Caller": "test"}
	client, err := NewBuilder(lc, agent, cfg).Build("hello-world")
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), "/hello-world")
	require.NoError(t, err)
	assert.Equal(t, "consul /hello-world", resp.String())
	require.Len(t, client.AvailableServers(), 1)
	assert.Equal(t, "dc1", client.AvailableServers()[0].Zone)

	require.Len(t, lc.managed, 1)
	require.NoError(t, lc.managed[0].Start(context.Background()))
	require.NoError(t, lc.managed[0].Stop(context.Background()))
}

func TestBuilder_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttemptsNextServer = 50
	_, err := NewBuilder(&lifecycle{}, &healthAgent{}, cfg).Build("x")
	assert.ErrorContains(t, err, "invalid client config")
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 1, cfg.MaxAttemptsNextServer)
	assert.Equal(t, balancer.RuleWeightedResponseTime, cfg.Rule)
	assert.NoError(t, cfg.Validate())

	cfg.Rule = "random"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.RefreshInterval = time.Millisecond
	assert.Error(t, cfg.Validate())
}

func TestBuilder_PropagatesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "caller")
	defer span.End()

	traceparent := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent <- r.Header.Get("Traceparent")
	}))
	t.Cleanup(srv.Close)
	s := serverFor(t, srv.Listener.Addr().String())
	agent := &healthAgent{entries: []*api.ServiceEntry{{
		Node:    &api.Node{Address: s.Host},
		Service: &api.AgentService{Port: s.Port},
	}}}

	client, err := NewBuilder(&lifecycle{}, agent, DefaultConfig()).Build("hello-world")
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Get(ctx, "/ping")
	require.NoError(t, err)
	assert.Contains(t, <-traceparent, span.SpanContext().TraceID().String())
}

func TestClient_SpanPerAttempt(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	_, live := backend(t, "live")
	c := NewClient(&stubBalancer{servers: []*balancer.Server{deadServer(t), live}}, httpclient.NewClient(), 1)
	c.tracer = tp.Tracer("test")

	_, err := c.Get(context.Background(), "/ping")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "lbclient GET", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	assert.Contains(t, spans[1].Attributes(), attribute.Int("http.status_code", http.StatusOK))
	assert.Contains(t, spans[1].Attributes(), attribute.String("lbclient.name", "hello-world"))
}

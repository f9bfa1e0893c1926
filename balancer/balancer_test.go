package balancer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-consul/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// fakeServerList 返回可替换的列表，err 非 nil 时返回错误
type fakeServerList struct {
	mu      sync.Mutex
	servers []*Server
	err     error
	calls   int
}

func (f *fakeServerList) set(servers []*Server, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servers, f.err = servers, err
}

func (f *fakeServerList) load(context.Context) ([]*Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.servers, f.err
}

func (f *fakeServerList) InitialServers(ctx context.Context) ([]*Server, error) { return f.load(ctx) }
func (f *fakeServerList) UpdatedServers(ctx context.Context) ([]*Server, error) { return f.load(ctx) }

func (f *fakeServerList) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func server(host string, zone string, ready bool) *Server {
	return &Server{Scheme: "http", Host: host, Port: 8080, Zone: zone, ReadyToServe: ready}
}

func TestBalancer_RoundRobin(t *testing.T) {
	list := &fakeServerList{servers: []*Server{server("a", "z1", true), server("b", "z1", true), server("c", "z1", false), nil}}
	b := New("hello-world", list)
	require.NoError(t, b.Start(context.Background()))
	defer b.Shutdown()

	assert.Equal(t, "hello-world", b.Name())
	assert.Len(t, b.Servers(false), 3)
	assert.Len(t, b.Servers(true), 2)

	var picked []string
	for i := 0; i < 4; i++ {
		picked = append(picked, b.Choose().Host)
	}
	assert.Equal(t, []string{"a", "b", "a", "b"}, picked)
}

func TestBalancer_LocalZonePreferred(t *testing.T) {
	list := &fakeServerList{servers: []*Server{server("a", "dc1", true), server("b", "dc2", true), server("c", "dc2", true)}}
	b := New("svc", list, WithLocalZone("dc2"))
	require.NoError(t, b.Start(context.Background()))
	defer b.Shutdown()

	for i := 0; i < 6; i++ {
		assert.Equal(t, "dc2", b.Choose().Zone)
	}

	list.set([]*Server{server("a", "dc1", true), server("c", "dc2", false)}, nil)
	require.NoError(t, b.Refresh(context.Background()))
	assert.Equal(t, "a", b.Choose().Host, "本区域没有可用实例时使用其他区域")
}

func TestBalancer_Empty(t *testing.T) {
	b := New("svc", &fakeServerList{})
	require.NoError(t, b.Start(context.Background()))
	defer b.Shutdown()

	assert.Nil(t, b.Choose())
	assert.Empty(t, b.Servers(true))
}

func TestBalancer_RefreshKeepsListOnError(t *testing.T) {
	log, logs := logger.NewObservedLogger("balancer", zapcore.WarnLevel)
	list := &fakeServerList{servers: []*Server{server("a", "", true)}}
	b := New("svc", list, WithLogger(log))
	require.NoError(t, b.Start(context.Background()))
	defer b.Shutdown()

	boom := errors.New("agent down")
	list.set(nil, boom)
	assert.ErrorIs(t, b.Refresh(context.Background()), boom)
	require.Len(t, b.Servers(true), 1)
	assert.Equal(t, "a", b.Choose().Host)
	assert.Equal(t, 1, logs.FilterMessage("Server list refresh failed, keeping previous list").Len())
}

func TestBalancer_InitialLoadFailure(t *testing.T) {
	log, logs := logger.NewObservedLogger("balancer", zapcore.WarnLevel)
	list := &fakeServerList{err: errors.New("agent down")}
	b := New("svc", list, WithLogger(log))

	require.NoError(t, b.Start(context.Background()), "初始加载失败不阻止启动")
	defer b.Shutdown()
	assert.Nil(t, b.Choose())
	assert.Equal(t, 1, logs.FilterMessage("Initial server list load failed").Len())
}

func TestBalancer_PeriodicRefresh(t *testing.T) {
	list := &fakeServerList{}
	b := New("svc", list, WithRefreshInterval(50*time.Millisecond))
	require.NoError(t, b.Start(context.Background()))

	list.set([]*Server{server("late", "", true)}, nil)
	assert.Eventually(t, func() bool {
		s := b.Choose()
		return s != nil && s.Host == "late"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Shutdown())
	require.NoError(t, b.Shutdown(), "重复关闭")
	calls := list.callCount()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, calls, list.callCount(), "关闭后不再刷新")
}

func TestServer(t *testing.T) {
	s := &Server{Host: "10.0.0.1", Port: 80}
	assert.Equal(t, "10.0.0.1:80", s.HostPort())
	assert.Equal(t, "10.0.0.1:80", s.String())

	s.Scheme = "https"
	assert.Equal(t, "https://10.0.0.1:80", s.String())

	v6 := &Server{Host: "fe80::1", Port: 443}
	assert.Equal(t, "[fe80::1]:443", v6.HostPort())

	f := ServerListFunc(func(context.Context) ([]*Server, error) { return []*Server{s}, nil })
	got, err := f.InitialServers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []*Server{s}, got)
}

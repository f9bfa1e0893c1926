package consul

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"
)

// fakeAgent 未设置的 Func 字段返回零值
type fakeAgent struct {
	mu sync.Mutex

	IsRegisteredFunc     func(serviceID string) (bool, error)
	RegisterFunc         func(reg *api.AgentServiceRegistration) error
	DeregisterFunc       func(serviceID string) error
	PingFunc             func() error
	ToggleFunc           func(serviceID string, enable bool, reason string) error
	HealthyInstancesFunc func(name string) ([]*api.ServiceEntry, error)
	GetValueFunc         func(key string) (string, bool, error)

	registered   []*api.AgentServiceRegistration
	deregistered []string
	toggles      []toggleCall
	registerHits int
}

type toggleCall struct {
	serviceID string
	enable    bool
	reason    string
}

func (f *fakeAgent) IsRegistered(_ context.Context, serviceID string) (bool, error) {
	if f.IsRegisteredFunc != nil {
		return f.IsRegisteredFunc(serviceID)
	}
	return false, nil
}

func (f *fakeAgent) Register(_ context.Context, reg *api.AgentServiceRegistration) error {
	f.mu.Lock()
	f.registerHits++
	f.mu.Unlock()
	if f.RegisterFunc != nil {
		if err := f.RegisterFunc(reg); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.registered = append(f.registered, reg)
	f.mu.Unlock()
	return nil
}

func (f *fakeAgent) Deregister(_ context.Context, serviceID string) error {
	if f.DeregisterFunc != nil {
		if err := f.DeregisterFunc(serviceID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.deregistered = append(f.deregistered, serviceID)
	f.mu.Unlock()
	return nil
}

func (f *fakeAgent) Ping(context.Context) error {
	if f.PingFunc != nil {
		return f.PingFunc()
	}
	return nil
}

func (f *fakeAgent) ToggleMaintenanceMode(_ context.Context, serviceID string, enable bool, reason string) error {
	f.mu.Lock()
	f.toggles = append(f.toggles, toggleCall{serviceID, enable, reason})
	f.mu.Unlock()
	if f.ToggleFunc != nil {
		return f.ToggleFunc(serviceID, enable, reason)
	}
	return nil
}

func (f *fakeAgent) HealthyServiceInstances(_ context.Context, name string) ([]*api.ServiceEntry, error) {
	if f.HealthyInstancesFunc != nil {
		return f.HealthyInstancesFunc(name)
	}
	return nil, nil
}

func (f *fakeAgent) GetValueAsString(_ context.Context, key string) (string, bool, error) {
	if f.GetValueFunc != nil {
		return f.GetValueFunc(key)
	}
	return "", false, nil
}

func (f *fakeAgent) registerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registerHits
}

// fakeScheduler 记录延迟，不自动执行；runPending 同步执行已提交的任务
type fakeScheduler struct {
	mu       sync.Mutex
	delays   []time.Duration
	pending  []func()
	shutdown int
}

func (s *fakeScheduler) Schedule(delay time.Duration, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown > 0 {
		return ErrSchedulerClosed
	}
	s.delays = append(s.delays, delay)
	s.pending = append(s.pending, task)
	return nil
}

func (s *fakeScheduler) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown++
	return nil
}

func (s *fakeScheduler) runPending() {
	s.mu.Lock()
	tasks := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

func ptr[T any](v T) *T { return &v }

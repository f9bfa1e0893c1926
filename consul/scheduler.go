package consul

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler 延迟执行一次性任务，用于注册失败后的重试
type Scheduler interface {
	// Schedule delay 后执行 task，关闭后返回 ErrSchedulerClosed
	Schedule(delay time.Duration, task func()) error

	// Shutdown 停止调度，可重复调用
	Shutdown() error
}

// GocronScheduler 基于 gocron 的单并发调度器
type GocronScheduler struct {
	mu        sync.Mutex
	scheduler gocron.Scheduler
	closed    bool
}

// NewGocronScheduler 创建并启动调度器
func NewGocronScheduler() (*GocronScheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLimitConcurrentJobs(1, gocron.LimitModeWait))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s.Start()
	return &GocronScheduler{scheduler: s}, nil
}

// Schedule 提交一次性任务
func (s *GocronScheduler) Schedule(delay time.Duration, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}

	start := gocron.OneTimeJobStartImmediately()
	if delay > 0 {
		start = gocron.OneTimeJobStartDateTime(time.Now().Add(delay))
	}
	_, err := s.scheduler.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(func() {
			if s.IsShutdown() {
				return
			}
			task()
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule task: %w", err)
	}
	return nil
}

// Shutdown 标记关闭并在后台停止 gocron
// 任务内部会调用 Shutdown（注册成功后），这里不能等待正在执行的任务
func (s *GocronScheduler) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	go func() { _ = s.scheduler.Shutdown() }()
	return nil
}

// IsShutdown 是否已关闭
func (s *GocronScheduler) IsShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

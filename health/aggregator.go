package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Aggregator 检查项注册表，并发执行全部检查
type Aggregator struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	metadata map[string]interface{}
	timeout  time.Duration
}

// NewAggregator 创建聚合器，timeout <= 0 时为 5s
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Aggregator{
		checkers: make(map[string]Checker),
		metadata: make(map[string]interface{}),
		timeout:  timeout,
	}
}

// Register 注册检查项，同名重复注册返回错误
func (a *Aggregator) Register(checker Checker) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	name := checker.Name()
	if _, exists := a.checkers[name]; exists {
		return fmt.Errorf("health check %q already registered", name)
	}
	a.checkers[name] = checker
	return nil
}

// Names 已注册的检查项名称（有序）
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.checkers))
	for name := range a.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetMetadata 附加到每次结果中的元数据
func (a *Aggregator) SetMetadata(key string, value interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metadata[key] = value
}

// Check 执行全部检查；任一失败则整体 unhealthy
func (a *Aggregator) Check(ctx context.Context) *Response {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.mu.RLock()
	checkers := make([]Checker, 0, len(a.checkers))
	for _, c := range a.checkers {
		checkers = append(checkers, c)
	}
	metadata := make(map[string]interface{}, len(a.metadata))
	for k, v := range a.metadata {
		metadata[k] = v
	}
	a.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		resMu   sync.Mutex
		results = make(map[string]CheckResult, len(checkers))
	)
	for _, c := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			r := runCheck(checkCtx, c)
			resMu.Lock()
			results[r.Name] = r
			resMu.Unlock()
		}(c)
	}
	wg.Wait()

	status := StatusHealthy
	for _, r := range results {
		if r.Status != StatusHealthy {
			status = StatusUnhealthy
			break
		}
	}

	return &Response{
		Status:    status,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Checks:    results,
		Metadata:  metadata,
	}
}

func runCheck(ctx context.Context, c Checker) (result CheckResult) {
	start := time.Now()
	result = CheckResult{Name: c.Name(), Status: StatusHealthy, Message: "OK"}
	defer func() {
		if r := recover(); r != nil {
			result.Status = StatusUnhealthy
			result.Message = "Health check panicked"
			result.Error = fmt.Sprint(r)
		}
		result.Duration = time.Since(start)
	}()

	if err := c.Check(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Health check failed"
		result.Error = err.Error()
	}
	return result
}

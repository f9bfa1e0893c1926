package retry

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// RetryCondition 是否继续重试
type RetryCondition interface {
	ShouldRetry(err error, attempt int) bool
}

// ConditionFunc 函数适配
type ConditionFunc func(err error, attempt int) bool

// ShouldRetry 实现 RetryCondition
func (f ConditionFunc) ShouldRetry(err error, attempt int) bool { return f(err, attempt) }

// AlwaysRetry 任何错误都重试
func AlwaysRetry() RetryCondition {
	return ConditionFunc(func(err error, _ int) bool { return err != nil })
}

// RetryOnErrors 错误链中包含任一目标时重试
func RetryOnErrors(targets ...error) RetryCondition {
	return ConditionFunc(func(err error, _ int) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	})
}

// Not 取反
func Not(cond RetryCondition) RetryCondition {
	return ConditionFunc(func(err error, attempt int) bool {
		return !cond.ShouldRetry(err, attempt)
	})
}

// And 所有条件都满足才重试
func And(conds ...RetryCondition) RetryCondition {
	return ConditionFunc(func(err error, attempt int) bool {
		for _, cond := range conds {
			if !cond.ShouldRetry(err, attempt) {
				return false
			}
		}
		return len(conds) > 0
	})
}

// RetryOnTemporaryError 网络类错误：超时、连接拒绝/重置、断管
// 调用方自身的 context 取消不重试
func RetryOnTemporaryError() RetryCondition {
	return ConditionFunc(func(err error, _ int) bool {
		if err == nil || errors.Is(err, context.Canceled) {
			return false
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return true
		}
		return errors.Is(err, syscall.ECONNREFUSED) ||
			errors.Is(err, syscall.ECONNRESET) ||
			errors.Is(err, syscall.EPIPE)
	})
}

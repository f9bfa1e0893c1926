package retry

import (
	"math"
	"time"
)

// BackoffStrategy 退避策略，attempt 从 1 开始
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// BackoffFunc 函数适配
type BackoffFunc func(attempt int) time.Duration

// Next 实现 BackoffStrategy
func (f BackoffFunc) Next(attempt int) time.Duration { return f(attempt) }

// NoBackoff 立即重试
func NoBackoff() BackoffStrategy {
	return BackoffFunc(func(int) time.Duration { return 0 })
}

const maxBackoffDelay = 10 * time.Second

// ExponentialBackoff base * 2^(attempt-1)，不超过 10s
func ExponentialBackoff(base time.Duration) BackoffStrategy {
	return BackoffFunc(func(attempt int) time.Duration {
		if attempt <= 0 {
			return 0
		}
		delay := float64(base) * math.Pow(2, float64(attempt-1))
		if delay > float64(maxBackoffDelay) {
			return maxBackoffDelay
		}
		return time.Duration(delay)
	})
}

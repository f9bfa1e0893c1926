package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(d time.Duration) BackoffStrategy {
	return BackoffFunc(func(int) time.Duration { return d })
}

func TestDoWithData_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	got, err := DoWithData(context.Background(), func() (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestDoWithData_FailThenSuccess(t *testing.T) {
	calls := 0
	var retried []int
	got, err := DoWithData(context.Background(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("temporary")
		}
		return calls, nil
	}, MaxAttempts(5), Backoff(NoBackoff()), OnRetry(func(attempt int, _ error) {
		retried = append(retried, attempt)
	}))

	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoWithData_AllFailed(t *testing.T) {
	calls := 0
	_, err := DoWithData(context.Background(), func() (struct{}, error) {
		calls++
		return struct{}{}, fmt.Errorf("boom %d", calls)
	}, MaxAttempts(3), Backoff(NoBackoff()))

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.EqualError(t, err, "boom 3")

	var multiErr *MultiError
	require.True(t, errors.As(err, &multiErr))
	assert.Equal(t, 3, multiErr.Attempts)
	assert.Len(t, multiErr.Errors, 3)
	assert.EqualError(t, multiErr.LastError(), "boom 3")
	assert.Contains(t, multiErr.Summary(), "attempt 1: boom 1")
	assert.Contains(t, multiErr.Summary(), "retry failed after 3 attempts")
}

func TestDoWithData_ConditionStopsRetry(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	_, err := DoWithData(context.Background(), func() (int, error) {
		calls++
		return 0, fatal
	}, MaxAttempts(5), Backoff(NoBackoff()), Condition(Not(RetryOnErrors(fatal))))

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDoWithData_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := DoWithData(ctx, func() (int, error) {
		calls++
		cancel()
		return 0, errors.New("x")
	}, MaxAttempts(3), Backoff(constant(time.Second)))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoWithData_DeadlineShorterThanBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := DoWithData(ctx, func() (int, error) {
		return 0, errors.New("x")
	}, MaxAttempts(3), Backoff(constant(time.Minute)))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff(100 * time.Millisecond)

	assert.Equal(t, time.Duration(0), b.Next(0))
	assert.Equal(t, 100*time.Millisecond, b.Next(1))
	assert.Equal(t, 200*time.Millisecond, b.Next(2))
	assert.Equal(t, 400*time.Millisecond, b.Next(3))
	assert.Equal(t, 10*time.Second, b.Next(20))
}

func TestRetryOnTemporaryError(t *testing.T) {
	cond := RetryOnTemporaryError()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"普通错误", errors.New("x"), false},
		{"调用方取消", context.Canceled, false},
		{"超时", context.DeadlineExceeded, true},
		{"连接拒绝", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"连接重置", syscall.ECONNRESET, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cond.ShouldRetry(tt.err, 1))
		})
	}
}

func TestAnd(t *testing.T) {
	stop := errors.New("stop")
	cond := And(Not(RetryOnErrors(stop)), RetryOnTemporaryError())

	assert.True(t, cond.ShouldRetry(&net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, 1))
	assert.False(t, cond.ShouldRetry(fmt.Errorf("dial: %w", stop), 1), "排除的错误不重试")
	assert.False(t, cond.ShouldRetry(errors.New("bad request"), 1), "非网络错误不重试")
	assert.False(t, And().ShouldRetry(errors.New("x"), 1))
}

package retry

import (
	"fmt"
	"strings"
)

// MultiError 所有尝试的错误
type MultiError struct {
	Errors   []error
	Attempts int
}

// Error 最后一次错误的信息
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "retry failed: no errors"
	}
	return e.Errors[len(e.Errors)-1].Error()
}

// Unwrap 返回全部错误，errors.Is/As 会逐个匹配
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// LastError 最后一次错误
func (e *MultiError) LastError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

// Summary 多行汇总，便于日志
func (e *MultiError) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "retry failed after %d attempts:", e.Attempts)
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "\n  attempt %d: %v", i+1, err)
	}
	return b.String()
}

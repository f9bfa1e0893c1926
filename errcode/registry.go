package errcode

import (
	"fmt"
	"sync"
)

// Registry 错误码注册表，防止不同包使用同一错误码
type Registry struct {
	mu    sync.Mutex
	codes map[int]string // code -> module:msgKey
}

var globalRegistry = NewRegistry()

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{codes: make(map[int]string)}
}

// Register 注册到全局注册表，通常在包级 var 中使用
//
//	var ErrMissingParameter = errcode.Register(errcode.New(31, 2, "consul", "error.consul.missing_parameter", "missing parameter", http.StatusBadRequest))
func Register(err *LayeredError) *LayeredError {
	return globalRegistry.Register(err)
}

// Register 注册错误码；同一错误码对应不同 module:msgKey 时 panic，相同则幂等
func (r *Registry) Register(err *LayeredError) *LayeredError {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := err.Module() + ":" + err.MsgKey()
	if existing, ok := r.codes[err.Code()]; ok && existing != key {
		panic(fmt.Sprintf("error code conflict: code %d is already registered as %s, cannot register as %s",
			err.Code(), existing, key))
	}
	r.codes[err.Code()] = key
	return err
}

// Lookup 查询错误码对应的 module:msgKey
func (r *Registry) Lookup(code int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.codes[code]
	return key, ok
}

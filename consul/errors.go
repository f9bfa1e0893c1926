package consul

import (
	"errors"
	"net/http"

	"github.com/KOMKZ/go-yogan-consul/errcode"
)

// 模块码 31
const moduleCode = 31

var (
	// ErrBlankServiceName 注册时服务名为空
	ErrBlankServiceName = errcode.Register(errcode.New(moduleCode, 1, "consul", "error.consul.blank_service_name",
		"serviceName must not be blank; make sure it is set before calling register"))

	// ErrMissingParameter 运维任务缺少参数
	ErrMissingParameter = errcode.Register(errcode.New(moduleCode, 2, "consul", "error.consul.missing_parameter",
		"missing parameter", http.StatusBadRequest))

	// ErrAgentUnavailable ping agent 失败
	ErrAgentUnavailable = errcode.Register(errcode.New(moduleCode, 3, "consul", "error.consul.agent_unavailable",
		"Could not ping consul", http.StatusServiceUnavailable))

	// ErrUndefinedVariable 严格模式下 KV 中不存在的 key
	ErrUndefinedVariable = errcode.Register(errcode.New(moduleCode, 4, "consul", "error.consul.undefined_variable",
		"variable not found in the Consul KV store"))
)

// ErrSchedulerClosed 调度器已关闭后再次提交任务
var ErrSchedulerClosed = errors.New("consul: scheduler is shut down")

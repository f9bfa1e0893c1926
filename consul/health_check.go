package consul

import (
	"context"
	"errors"

	"github.com/KOMKZ/go-yogan-consul/logger"
	"go.uber.org/zap"
)

// HealthCheck ping 本地 agent，注册到健康检查聚合器中名为 consul
type HealthCheck struct {
	agent Agent
	log   *logger.CtxZapLogger
}

// NewHealthCheck 创建检查项
func NewHealthCheck(agent Agent) *HealthCheck {
	return &HealthCheck{agent: agent, log: logger.GetLogger("consul")}
}

// Name 检查项名称
func (h *HealthCheck) Name() string {
	return "consul"
}

// Check agent 不可达时返回 ErrAgentUnavailable
func (h *HealthCheck) Check(ctx context.Context) error {
	err := h.agent.Ping(ctx)
	if err == nil {
		return nil
	}
	h.log.WarnCtx(ctx, "Unable to ping consul", zap.Error(err))
	if errors.Is(err, ErrAgentUnavailable) {
		return err
	}
	return ErrAgentUnavailable.Wrap(err)
}

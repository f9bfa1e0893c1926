package consul

import (
	"context"

	"go.uber.org/zap"
)

// AdvertiserManager 随应用停止注销服务，实现 application.Managed
type AdvertiserManager struct {
	advertiser *Advertiser
	scheduler  Scheduler
}

// NewAdvertiserManager scheduler 可以为 nil
func NewAdvertiserManager(advertiser *Advertiser, scheduler Scheduler) *AdvertiserManager {
	return &AdvertiserManager{advertiser: advertiser, scheduler: scheduler}
}

// Start 注册由 ServiceListener 在端口绑定后完成
func (m *AdvertiserManager) Start(context.Context) error {
	return nil
}

// Stop 注销服务并停止重试
func (m *AdvertiserManager) Stop(ctx context.Context) error {
	m.advertiser.Deregister(ctx)
	if m.scheduler != nil {
		if err := m.scheduler.Shutdown(); err != nil {
			m.advertiser.log.WarnCtx(ctx, "Shutdown registration scheduler failed", zap.Error(err))
		}
	}
	return nil
}

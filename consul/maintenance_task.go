package consul

import (
	"context"
	"io"
	"strings"

	"github.com/KOMKZ/go-yogan-consul/logger"
	"go.uber.org/zap"
)

// MaintenanceTask 管理端口上的 maintenance 任务，切换服务的维护模式
//
//	curl -X POST 'http://localhost:8081/tasks/maintenance?enable=true&reason=deploy'
type MaintenanceTask struct {
	agent     Agent
	serviceID string
	log       *logger.CtxZapLogger
	metrics   *instruments
}

// NewMaintenanceTask 创建任务
func NewMaintenanceTask(agent Agent, serviceID string) *MaintenanceTask {
	return &MaintenanceTask{
		agent:     agent,
		serviceID: serviceID,
		log:       logger.GetLogger("consul"),
		metrics:   newInstruments(nil),
	}
}

// Name 任务名
func (t *MaintenanceTask) Name() string {
	return "maintenance"
}

// Execute enable 必填（忽略大小写的 "true" 为开启），reason 取第一个非空值
func (t *MaintenanceTask) Execute(ctx context.Context, params map[string][]string, w io.Writer) error {
	enableValues, ok := params["enable"]
	if !ok {
		return ErrMissingParameter.WithMsg(`Parameter "enable" not found`)
	}

	reason := ""
	for _, r := range params["reason"] {
		if r != "" {
			reason = r
			break
		}
	}

	enable := len(enableValues) > 0 && strings.EqualFold(enableValues[0], "true")

	msg := "Disabling maintenance mode"
	if enable {
		msg = "Enabling maintenance mode"
	}
	reasonForLogs := reason
	if reasonForLogs == "" {
		reasonForLogs = "none given"
	}
	t.log.WarnCtx(ctx, msg,
		zap.String("service_id", t.serviceID),
		zap.Bool("enable", enable),
		zap.String("reason", reasonForLogs))

	if err := t.agent.ToggleMaintenanceMode(ctx, t.serviceID, enable, reason); err != nil {
		return err
	}
	t.metrics.maintenanceToggle(ctx, t.serviceID, enable)
	_, err := io.WriteString(w, "OK\n")
	return err
}

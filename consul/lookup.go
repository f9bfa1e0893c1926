package consul

import (
	"context"
	"time"

	"github.com/KOMKZ/go-yogan-consul/config"
	"github.com/KOMKZ/go-yogan-consul/logger"
	"go.uber.org/zap"
)

// KVLookup 从 Consul KV 读取配置变量，实现 config.Lookup
type KVLookup struct {
	agent   Agent
	strict  bool
	timeout time.Duration
	log     *logger.CtxZapLogger
}

// NewKVLookup strict 为 true 时 key 不存在返回 ErrUndefinedVariable
func NewKVLookup(agent Agent, strict bool) *KVLookup {
	return &KVLookup{
		agent:   agent,
		strict:  strict,
		timeout: 10 * time.Second,
		log:     logger.GetLogger("consul-config"),
	}
}

// Lookup agent 出错时记录告警并按未找到处理
// 严格模式的错误同时匹配 config.ErrUndefinedVariable，${key:-default} 仍会使用默认值
func (l *KVLookup) Lookup(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	value, found, err := l.agent.GetValueAsString(ctx, key)
	if err != nil {
		l.log.Warn("Unable to lookup key in consul", zap.String("key", key), zap.Error(err))
	} else if found {
		return value, true, nil
	}

	if l.strict {
		return "", false, ErrUndefinedVariable.
			WithMsgf("The variable with key '%s' is not found in the Consul KV store; could not substitute the expression '${%s}'.", key, key).
			Wrap(config.ErrUndefinedVariable)
	}
	return "", false, nil
}

// NewKVSubstitutor 基于 KV 的配置替换器
func NewKVSubstitutor(agent Agent, strict, substitutionInVariables bool) *config.Substitutor {
	return config.NewSubstitutor(NewKVLookup(agent, strict),
		config.WithStrict(strict),
		config.WithSubstitutionInVariables(substitutionInVariables))
}

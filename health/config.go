package health

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config 健康检查配置
type Config struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ApplyDefaults 超时默认 5s
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

// Validate 校验
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Timeout, validation.Min(100*time.Millisecond)),
	)
}

package config

import (
	"fmt"
	"strings"
)

// LogConfig 日志配置
//
// 为空的字段沿用 NATLINK_LOG_LEVEL / NATLINK_LOG_FORMAT。
type LogConfig struct {
	// Level 级别，格式同 NATLINK_LOG_LEVEL，例如 "coord=debug,info"
	Level string `json:"level,omitempty"`

	// Format text 或 json
	Format string `json:"format,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{}
}

// Validate 验证日志配置
func (c LogConfig) Validate() error {
	switch strings.ToLower(c.Format) {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.Format)
	}
}

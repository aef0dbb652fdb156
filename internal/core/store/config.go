package store

import (
	"github.com/dep2p/go-natlink/config"
)

// MemoryPath 内存数据库路径
const MemoryPath = ":memory:"

// Config Store 模块配置
type Config struct {
	// Path SQLite 数据库文件路径，MemoryPath 表示内存库
	Path string

	// BusyTimeoutMs 数据库被锁时的等待时间（毫秒）
	BusyTimeoutMs int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Path:          "coordDB.db",
		BusyTimeoutMs: 5000,
	}
}

// ConfigFromUnified 从统一配置创建 Store 配置
func ConfigFromUnified(cfg *config.Config) Config {
	storeCfg := DefaultConfig()
	if cfg == nil {
		return storeCfg
	}
	if cfg.Storage.Path != "" {
		storeCfg.Path = cfg.Storage.Path
	}
	return storeCfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Path == "" {
		return ErrInvalidConfig
	}
	if c.BusyTimeoutMs < 0 {
		c.BusyTimeoutMs = 0
	}
	return nil
}

// WithPath 设置数据库路径
func (c Config) WithPath(path string) Config {
	c.Path = path
	return c
}

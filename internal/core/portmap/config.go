package portmap

import (
	"fmt"
	"time"

	"github.com/dep2p/go-natlink/config"
)

// Config 端口映射配置
type Config struct {
	Enabled          bool
	EnableUPnP       bool
	EnableNATPMP     bool
	Lease            time.Duration
	DiscoveryTimeout time.Duration
	Description      string
}

// DefaultConfig 返回默认配置（未启用）
func DefaultConfig() Config {
	return configFrom(config.DefaultPortMapConfig())
}

// ConfigFromUnified 从统一配置创建端口映射配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return configFrom(cfg.PortMap)
}

func configFrom(p config.PortMapConfig) Config {
	return Config{
		Enabled:          p.Enabled,
		EnableUPnP:       p.EnableUPnP,
		EnableNATPMP:     p.EnableNATPMP,
		Lease:            p.Lease.Duration(),
		DiscoveryTimeout: p.DiscoveryTimeout.Duration(),
		Description:      p.Description,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !c.EnableUPnP && !c.EnableNATPMP {
		return fmt.Errorf("portmap: no protocol enabled")
	}
	if c.Lease < 3*time.Second {
		return fmt.Errorf("portmap: lease %v too short", c.Lease)
	}
	if c.DiscoveryTimeout <= 0 {
		return fmt.Errorf("portmap: discovery timeout must be positive")
	}
	return nil
}

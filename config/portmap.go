package config

import (
	"errors"
	"time"
)

// PortMapConfig 网关端口映射配置
type PortMapConfig struct {
	// Enabled 是否为协调主机映射端口
	Enabled bool `json:"enabled"`

	// EnableUPnP 尝试 UPnP IGD
	EnableUPnP bool `json:"enable_upnp"`

	// EnableNATPMP 尝试 NAT-PMP
	EnableNATPMP bool `json:"enable_natpmp"`

	// Lease 映射租期
	Lease Duration `json:"lease"`

	// DiscoveryTimeout 网关发现超时
	DiscoveryTimeout Duration `json:"discovery_timeout"`

	// Description 映射描述
	Description string `json:"description,omitempty"`
}

// DefaultPortMapConfig 返回默认端口映射配置
func DefaultPortMapConfig() PortMapConfig {
	return PortMapConfig{
		EnableUPnP:       true,
		EnableNATPMP:     true,
		Lease:            Duration(time.Hour),
		DiscoveryTimeout: Duration(10 * time.Second),
		Description:      "natlink",
	}
}

// Validate 验证端口映射配置
func (c PortMapConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !c.EnableUPnP && !c.EnableNATPMP {
		return errors.New("portmap enabled but no protocol selected")
	}
	if c.Lease <= 0 || c.DiscoveryTimeout <= 0 {
		return errors.New("portmap lease and discovery timeout must be positive")
	}
	return nil
}

// MetricsConfig 流量统计配置
type MetricsConfig struct {
	// Enabled 是否统计流量
	Enabled bool `json:"enabled"`

	// Addr /metrics 监听地址，为空不启动
	Addr string `json:"addr,omitempty"`
}

// DefaultMetricsConfig 返回默认统计配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Enabled: true}
}

// Validate 验证统计配置
func (c MetricsConfig) Validate() error {
	return nil
}

package config

import (
	"errors"
	"time"
)

// DiscoveryConfig 主机发现配置
type DiscoveryConfig struct {
	// InterfacePrefix 只保留名称带此前缀的网卡，例如 "eth"；为空不过滤
	InterfacePrefix string `json:"interface_prefix,omitempty"`

	// STUNServers 查询外部地址用的 STUN 服务器
	STUNServers []string `json:"stun_servers,omitempty"`

	// STUNTimeout 单次 STUN 查询超时
	STUNTimeout Duration `json:"stun_timeout"`

	// CacheDuration 外部地址缓存时长
	CacheDuration Duration `json:"cache_duration"`
}

// DefaultDiscoveryConfig 返回默认发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		STUNServers: []string{
			"stun.l.google.com:19302",
			"stun1.l.google.com:19302",
		},
		STUNTimeout:   Duration(5 * time.Second),
		CacheDuration: Duration(5 * time.Minute),
	}
}

// Validate 验证发现配置
func (c DiscoveryConfig) Validate() error {
	if c.STUNTimeout <= 0 || c.CacheDuration <= 0 {
		return errors.New("discovery timeouts must be positive")
	}
	return nil
}

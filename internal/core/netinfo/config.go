package netinfo

import (
	"time"

	"github.com/dep2p/go-natlink/config"
)

// Config 主机发现配置
type Config struct {
	// InterfacePrefix 网卡名前缀过滤，为空不过滤
	InterfacePrefix string

	// STUNServers 外部地址查询服务器
	STUNServers []string

	// STUNTimeout 单次查询超时
	STUNTimeout time.Duration

	// CacheDuration 外部地址缓存时长
	CacheDuration time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	d := config.DefaultDiscoveryConfig()
	return Config{
		STUNServers:   d.STUNServers,
		STUNTimeout:   d.STUNTimeout.Duration(),
		CacheDuration: d.CacheDuration.Duration(),
	}
}

// ConfigFromUnified 从统一配置创建发现配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	d := cfg.Discovery
	c := DefaultConfig()
	c.InterfacePrefix = d.InterfacePrefix
	if len(d.STUNServers) > 0 {
		c.STUNServers = d.STUNServers
	}
	if d.STUNTimeout > 0 {
		c.STUNTimeout = d.STUNTimeout.Duration()
	}
	if d.CacheDuration > 0 {
		c.CacheDuration = d.CacheDuration.Duration()
	}
	return c
}

// DiscoverOptions 返回对应的 Discover 选项
func (c Config) DiscoverOptions() []DiscoverOption {
	if c.InterfacePrefix == "" {
		return nil
	}
	return []DiscoverOption{WithInterfacePrefix(c.InterfacePrefix)}
}

// NewSTUNClient 按配置创建 STUN 客户端
func (c Config) NewSTUNClient(opts ...STUNOption) *STUNClient {
	base := []STUNOption{WithSTUNTimeout(c.STUNTimeout), WithCacheDuration(c.CacheDuration)}
	return NewSTUNClient(c.STUNServers, append(base, opts...)...)
}

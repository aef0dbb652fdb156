package nat

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/dep2p/go-natlink/config"
)

// Config 连通性会话配置
type Config struct {
	// STUNHost STUN 服务器，为空时只收集主机候选
	STUNHost string

	// STUNPort STUN 端口
	STUNPort uint16

	// ConnectTimeout 设置远端描述后处于 Connecting 的最长时间
	ConnectTimeout time.Duration

	// MaxInboundBuffer 入站缓冲上限（字节），超出的数据报被丢弃
	MaxInboundBuffer int

	// IncludeLoopback 是否收集回环地址候选
	IncludeLoopback bool

	// PortMin / PortMax 本地候选端口范围
	PortMin uint16
	PortMax uint16
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		STUNHost:         "stun.l.google.com",
		STUNPort:         19302,
		ConnectTimeout:   15 * time.Second,
		MaxInboundBuffer: 4 * 1024 * 1024,
	}
}

// ConfigFromUnified 从统一配置创建会话配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	n := cfg.NAT
	c.STUNHost = n.STUNHost
	c.STUNPort = n.STUNPort
	if n.ConnectTimeout > 0 {
		c.ConnectTimeout = n.ConnectTimeout.Duration()
	}
	if n.MaxInboundBuffer > 0 {
		c.MaxInboundBuffer = n.MaxInboundBuffer
	}
	c.IncludeLoopback = n.IncludeLoopback
	c.PortMin = n.PortMin
	c.PortMax = n.PortMax
	return c
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.STUNHost != "" && c.STUNPort == 0 {
		return fmt.Errorf("%w: stun port not set", ErrInvalidConfig)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: connect timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxInboundBuffer <= 0 {
		return fmt.Errorf("%w: inbound buffer must be positive", ErrInvalidConfig)
	}
	if c.PortMax != 0 && c.PortMin > c.PortMax {
		return fmt.Errorf("%w: port range inverted", ErrInvalidConfig)
	}
	return nil
}

// STUNURI 返回 "stun:host:port"，未配置服务器时为空
func (c Config) STUNURI() string {
	if c.STUNHost == "" {
		return ""
	}
	return "stun:" + net.JoinHostPort(c.STUNHost, strconv.Itoa(int(c.STUNPort)))
}

package config

import (
	"errors"
	"time"
)

// NATConfig ICE 连通性会话配置
type NATConfig struct {
	// STUNHost STUN 服务器，为空时只使用主机候选
	STUNHost string `json:"stun_host"`

	// STUNPort STUN 端口
	STUNPort uint16 `json:"stun_port"`

	// ConnectTimeout 设置远端描述后仍未连通即视为出现问题
	ConnectTimeout Duration `json:"connect_timeout"`

	// MaxInboundBuffer 入站缓冲上限（字节）
	MaxInboundBuffer int `json:"max_inbound_buffer"`

	// IncludeLoopback 是否收集回环候选
	IncludeLoopback bool `json:"include_loopback,omitempty"`

	// PortMin / PortMax 本地候选端口范围，0 表示不限制
	PortMin uint16 `json:"port_min,omitempty"`
	PortMax uint16 `json:"port_max,omitempty"`
}

// DefaultNATConfig 返回默认 NAT 配置
func DefaultNATConfig() NATConfig {
	return NATConfig{
		STUNHost:         "stun.l.google.com",
		STUNPort:         19302,
		ConnectTimeout:   Duration(15 * time.Second),
		MaxInboundBuffer: 4 * 1024 * 1024,
	}
}

// Validate 验证 NAT 配置
func (c NATConfig) Validate() error {
	if c.STUNHost != "" && c.STUNPort == 0 {
		return errors.New("stun port must be set when stun host is set")
	}
	if c.ConnectTimeout <= 0 {
		return errors.New("nat connect timeout must be positive")
	}
	if c.MaxInboundBuffer <= 0 {
		return errors.New("nat max inbound buffer must be positive")
	}
	if c.PortMax != 0 && c.PortMin > c.PortMax {
		return errors.New("nat port range is inverted")
	}
	return nil
}

package portmap

import (
	"context"
	"net"
	"strings"
	"time"
)

// Protocol 映射协议
type Protocol string

const (
	// UDP 协议
	UDP Protocol = "UDP"
	// TCP 协议
	TCP Protocol = "TCP"
)

// lower 返回 NAT-PMP 使用的小写协议名
func (p Protocol) lower() string {
	return strings.ToLower(string(p))
}

// Gateway 一个网关映射协议的实现
type Gateway interface {
	// Name 协议名（upnp-igd2、natpmp 等）
	Name() string

	// ExternalIP 网关的外部地址
	ExternalIP(ctx context.Context) (net.IP, error)

	// AddPortMapping 请求映射，返回网关分配的外部端口
	AddPortMapping(ctx context.Context, proto Protocol, internalPort, externalPort int, lease time.Duration) (int, error)

	// DeletePortMapping 删除映射
	DeletePortMapping(ctx context.Context, proto Protocol, internalPort, externalPort int) error
}

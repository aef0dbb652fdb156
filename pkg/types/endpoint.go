package types

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// ============================================================================
//                              Endpoint - IPv4 端点
// ============================================================================

// Endpoint IPv4 地址 + 端口
//
// 值类型，可比较，可作为 map 键。零值表示未指定的端点。
type Endpoint struct {
	ip   [4]byte
	port uint16
}

// NewEndpoint 由 4 字节地址和端口创建端点
func NewEndpoint(ip [4]byte, port uint16) Endpoint {
	return Endpoint{ip: ip, port: port}
}

// EndpointFromBytes 由原始字节创建端点
//
// 接受 4 字节或 IPv4-mapped 的 16 字节形式。
func EndpointFromBytes(b []byte, port uint16) (Endpoint, error) {
	addr, ok := netip.AddrFromSlice(b)
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %d address bytes", ErrInvalidEndpoint, len(b))
	}
	return EndpointFromAddrPort(netip.AddrPortFrom(addr, port))
}

// EndpointFromAddrPort 由 netip.AddrPort 创建端点
func EndpointFromAddrPort(ap netip.AddrPort) (Endpoint, error) {
	addr := ap.Addr().Unmap()
	if !addr.Is4() {
		return Endpoint{}, fmt.Errorf("%w: %s is not IPv4", ErrInvalidEndpoint, addr)
	}
	return Endpoint{ip: addr.As4(), port: ap.Port()}, nil
}

// ParseEndpoint 解析 "a.b.c.d:port" 形式的端点
//
// 只接受规范写法：地址为点分四段，端口不带前导零，保证与 String 互逆。
func ParseEndpoint(s string) (Endpoint, error) {
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		if port := s[i+1:]; len(port) > 1 && port[0] == '0' {
			return Endpoint{}, fmt.Errorf("%w: port %q has leading zeros", ErrInvalidEndpoint, port)
		}
	}
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if !ap.Addr().Is4() {
		return Endpoint{}, fmt.Errorf("%w: %s is not a dotted-quad address", ErrInvalidEndpoint, ap.Addr())
	}
	return EndpointFromAddrPort(ap)
}

// ResolveEndpoint 解析 "host:port"，host 可以是主机名
func ResolveEndpoint(s string) (Endpoint, error) {
	if ep, err := ParseEndpoint(s); err == nil {
		return ep, nil
	}
	ua, err := net.ResolveUDPAddr("udp4", s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	return EndpointFromAddrPort(ua.AddrPort())
}

// IP 返回 4 字节地址
func (e Endpoint) IP() [4]byte { return e.ip }

// Port 返回端口
func (e Endpoint) Port() uint16 { return e.port }

// Addr 返回 netip.Addr 形式的地址
func (e Endpoint) Addr() netip.Addr { return netip.AddrFrom4(e.ip) }

// AddrPort 返回 netip.AddrPort
func (e Endpoint) AddrPort() netip.AddrPort { return netip.AddrPortFrom(e.Addr(), e.port) }

// WithPort 返回端口替换后的端点
func (e Endpoint) WithPort(port uint16) Endpoint {
	e.port = port
	return e
}

// IsZero 是否为零值
func (e Endpoint) IsZero() bool { return e == Endpoint{} }

// IsSpecified 地址与端口是否都已指定
//
// 只有已指定的端点可以作为发送目标。
func (e Endpoint) IsSpecified() bool {
	return e.ip != [4]byte{} && e.port != 0
}

// String 返回 "a.b.c.d:port"
func (e Endpoint) String() string {
	return e.Addr().String() + ":" + strconv.Itoa(int(e.port))
}

// MarshalText 实现 encoding.TextMarshaler
func (e Endpoint) MarshalText() ([]byte, error) {
	if e.IsZero() {
		return []byte{}, nil
	}
	return []byte(e.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (e *Endpoint) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*e = Endpoint{}
		return nil
	}
	ep, err := ResolveEndpoint(string(b))
	if err != nil {
		return err
	}
	*e = ep
	return nil
}

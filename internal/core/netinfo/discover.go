package netinfo

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"strings"

	"github.com/wlynxg/anet"

	"github.com/dep2p/go-natlink/internal/util/logger"
	"github.com/dep2p/go-natlink/pkg/types"
)

var log = logger.Logger("netinfo")

// Interface 一个 IPv4 网卡地址
type Interface struct {
	Name      string
	Index     int
	MTU       int
	Flags     net.Flags
	Addr      netip.Addr
	Prefix    netip.Prefix
	Broadcast netip.Addr
}

// Netmask 返回点分十进制掩码
func (i Interface) Netmask() string {
	mask := net.CIDRMask(i.Prefix.Bits(), 32)
	return net.IP(mask).String()
}

// IsLoopback 是否为回环网卡
func (i Interface) IsLoopback() bool {
	return i.Flags&net.FlagLoopback != 0
}

// Info 本机网络信息
type Info struct {
	Hostname   string
	Interfaces []Interface
}

// Addresses 返回全部网卡地址
func (info *Info) Addresses() []netip.Addr {
	out := make([]netip.Addr, 0, len(info.Interfaces))
	for _, i := range info.Interfaces {
		out = append(out, i.Addr)
	}
	return out
}

// ByName 按名称查找网卡地址
func (info *Info) ByName(name string) (Interface, bool) {
	for _, i := range info.Interfaces {
		if i.Name == name {
			return i, true
		}
	}
	return Interface{}, false
}

// PreferredEndpoint 返回第一个非回环地址与 port 组成的端点
//
// 只有回环地址时返回回环地址。
func (info *Info) PreferredEndpoint(port uint16) (types.Endpoint, error) {
	var fallback *Interface
	for idx := range info.Interfaces {
		i := &info.Interfaces[idx]
		if i.IsLoopback() {
			if fallback == nil {
				fallback = i
			}
			continue
		}
		return types.NewEndpoint(i.Addr.As4(), port), nil
	}
	if fallback != nil {
		return types.NewEndpoint(fallback.Addr.As4(), port), nil
	}
	return types.Endpoint{}, ErrNoAddress
}

// ============================================================================
//                              发现
// ============================================================================

// source 网卡枚举来源
type source interface {
	Interfaces() ([]net.Interface, error)
	Addrs(iface *net.Interface) ([]net.Addr, error)
}

// anetSource 基于 wlynxg/anet，在 Android 上也能枚举网卡
type anetSource struct{}

func (anetSource) Interfaces() ([]net.Interface, error) {
	return anet.Interfaces()
}

func (anetSource) Addrs(iface *net.Interface) ([]net.Addr, error) {
	return anet.InterfaceAddrsByInterface(iface)
}

type discoverOptions struct {
	prefix   string
	loopback bool
	src      source
	hostname func() (string, error)
}

// DiscoverOption 发现选项
type DiscoverOption func(*discoverOptions)

// WithInterfacePrefix 只保留名称带此前缀的网卡
func WithInterfacePrefix(prefix string) DiscoverOption {
	return func(o *discoverOptions) { o.prefix = prefix }
}

// WithLoopback 保留回环网卡
func WithLoopback() DiscoverOption {
	return func(o *discoverOptions) { o.loopback = true }
}

// Discover 枚举本机处于 up 状态的网卡上的 IPv4 地址
func Discover(opts ...DiscoverOption) (*Info, error) {
	o := discoverOptions{src: anetSource{}, hostname: os.Hostname}
	for _, opt := range opts {
		opt(&o)
	}
	return discover(o)
}

func discover(o discoverOptions) (*Info, error) {
	host, err := o.hostname()
	if err != nil {
		log.Debug("获取主机名失败", "error", err)
	}
	info := &Info{Hostname: host}

	ifaces, err := o.src.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("netinfo: list interfaces: %w", err)
	}

	for idx := range ifaces {
		iface := &ifaces[idx]
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if iface.Flags&net.FlagLoopback != 0 && !o.loopback {
			continue
		}
		if o.prefix != "" && !strings.HasPrefix(iface.Name, o.prefix) {
			continue
		}

		addrs, err := o.src.Addrs(iface)
		if err != nil {
			log.Debug("读取网卡地址失败", "iface", iface.Name, "error", err)
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip, ok := netip.AddrFromSlice(ipnet.IP)
			if !ok {
				continue
			}
			ip = ip.Unmap()
			if !ip.Is4() {
				continue
			}
			bits, _ := ipnet.Mask.Size()
			prefix := netip.PrefixFrom(ip, bits)
			info.Interfaces = append(info.Interfaces, Interface{
				Name:      iface.Name,
				Index:     iface.Index,
				MTU:       iface.MTU,
				Flags:     iface.Flags,
				Addr:      ip,
				Prefix:    prefix,
				Broadcast: broadcastOf(prefix),
			})
		}
	}

	log.Debug("本机网络信息", "hostname", info.Hostname, "addresses", len(info.Interfaces))
	return info, nil
}

// broadcastOf 返回 IPv4 前缀的广播地址
func broadcastOf(p netip.Prefix) netip.Addr {
	ip := p.Addr().As4()
	mask := net.CIDRMask(p.Bits(), 32)
	for i := range ip {
		ip[i] |= ^mask[i]
	}
	return netip.AddrFrom4(ip)
}

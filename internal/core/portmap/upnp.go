package portmap

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/huin/goupnp/dcps/internetgateway1"
	"github.com/huin/goupnp/dcps/internetgateway2"
)

// igdClient goupnp 生成的 WAN 连接服务共有的方法
type igdClient interface {
	AddPortMappingCtx(
		ctx context.Context,
		NewRemoteHost string,
		NewExternalPort uint16,
		NewProtocol string,
		NewInternalPort uint16,
		NewInternalClient string,
		NewEnabled bool,
		NewPortMappingDescription string,
		NewLeaseDuration uint32,
	) error

	DeletePortMappingCtx(
		ctx context.Context,
		NewRemoteHost string,
		NewExternalPort uint16,
		NewProtocol string,
	) error

	GetExternalIPAddressCtx(ctx context.Context) (string, error)
}

// upnpGateway UPnP IGD 网关
type upnpGateway struct {
	name        string
	client      igdClient
	localIP     net.IP
	description string
}

var _ Gateway = (*upnpGateway)(nil)

func (g *upnpGateway) Name() string { return g.name }

func (g *upnpGateway) ExternalIP(ctx context.Context) (net.IP, error) {
	s, err := g.client.GetExternalIPAddressCtx(ctx)
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("portmap: gateway returned invalid address %q", s)
	}
	return ip, nil
}

func (g *upnpGateway) AddPortMapping(ctx context.Context, proto Protocol, internalPort, externalPort int, lease time.Duration) (int, error) {
	err := g.client.AddPortMappingCtx(ctx,
		"", // 任意远端
		uint16(externalPort),
		string(proto),
		uint16(internalPort),
		g.localIP.String(),
		true,
		g.description,
		uint32(lease/time.Second),
	)
	if err != nil {
		return 0, err
	}
	return externalPort, nil
}

func (g *upnpGateway) DeletePortMapping(ctx context.Context, proto Protocol, _, externalPort int) error {
	return g.client.DeletePortMappingCtx(ctx, "", uint16(externalPort), string(proto))
}

// upnpDiscoverers 按优先级排列的 IGD 服务发现
var upnpDiscoverers = []struct {
	name     string
	discover func(ctx context.Context) (igdClient, error)
}{
	{"upnp-igd2-ip2", func(ctx context.Context) (igdClient, error) {
		cs, _, err := internetgateway2.NewWANIPConnection2ClientsCtx(ctx)
		if err != nil || len(cs) == 0 {
			return nil, orNoGateway(err)
		}
		return cs[0], nil
	}},
	{"upnp-igd2-ip1", func(ctx context.Context) (igdClient, error) {
		cs, _, err := internetgateway2.NewWANIPConnection1ClientsCtx(ctx)
		if err != nil || len(cs) == 0 {
			return nil, orNoGateway(err)
		}
		return cs[0], nil
	}},
	{"upnp-igd2-ppp", func(ctx context.Context) (igdClient, error) {
		cs, _, err := internetgateway2.NewWANPPPConnection1ClientsCtx(ctx)
		if err != nil || len(cs) == 0 {
			return nil, orNoGateway(err)
		}
		return cs[0], nil
	}},
	{"upnp-igd1-ip", func(ctx context.Context) (igdClient, error) {
		cs, _, err := internetgateway1.NewWANIPConnection1ClientsCtx(ctx)
		if err != nil || len(cs) == 0 {
			return nil, orNoGateway(err)
		}
		return cs[0], nil
	}},
	{"upnp-igd1-ppp", func(ctx context.Context) (igdClient, error) {
		cs, _, err := internetgateway1.NewWANPPPConnection1ClientsCtx(ctx)
		if err != nil || len(cs) == 0 {
			return nil, orNoGateway(err)
		}
		return cs[0], nil
	}},
}

// discoverUPnP SSDP 搜索 IGD，返回第一个可用的服务
func discoverUPnP(ctx context.Context, localIP net.IP, description string) (Gateway, error) {
	for _, d := range upnpDiscoverers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		client, err := d.discover(ctx)
		if err != nil {
			log.Debug("UPnP 服务不可用", "service", d.name, "error", err)
			continue
		}
		log.Debug("发现 UPnP 网关", "service", d.name)
		return &upnpGateway{
			name:        d.name,
			client:      client,
			localIP:     localIP,
			description: description,
		}, nil
	}
	return nil, ErrNoGateway
}

func orNoGateway(err error) error {
	if err != nil {
		return err
	}
	return ErrNoGateway
}

package portmap

import (
	"context"
	"net"
	"time"

	"github.com/jackpal/gateway"
	natpmp "github.com/jackpal/go-nat-pmp"
)

// pmpClient go-nat-pmp 客户端的方法子集
type pmpClient interface {
	GetExternalAddress() (*natpmp.GetExternalAddressResult, error)
	AddPortMapping(protocol string, internalPort, requestedExternalPort int, lifetime int) (*natpmp.AddPortMappingResult, error)
}

// natpmpGateway NAT-PMP 网关
//
// go-nat-pmp 的调用不接受 context，超时由客户端自身控制。
type natpmpGateway struct {
	client  pmpClient
	gateway net.IP
}

var _ Gateway = (*natpmpGateway)(nil)

func (g *natpmpGateway) Name() string { return "natpmp" }

func (g *natpmpGateway) ExternalIP(context.Context) (net.IP, error) {
	res, err := g.client.GetExternalAddress()
	if err != nil {
		return nil, err
	}
	ip := res.ExternalIPAddress
	return net.IPv4(ip[0], ip[1], ip[2], ip[3]), nil
}

func (g *natpmpGateway) AddPortMapping(_ context.Context, proto Protocol, internalPort, externalPort int, lease time.Duration) (int, error) {
	res, err := g.client.AddPortMapping(proto.lower(), internalPort, externalPort, int(lease/time.Second))
	if err != nil {
		return 0, err
	}
	return int(res.MappedExternalPort), nil
}

// DeletePortMapping 以零租期请求删除映射
func (g *natpmpGateway) DeletePortMapping(_ context.Context, proto Protocol, internalPort, _ int) error {
	_, err := g.client.AddPortMapping(proto.lower(), internalPort, 0, 0)
	return err
}

// discoverGatewayIP 默认网关地址，测试中替换
var discoverGatewayIP = gateway.DiscoverGateway

// discoverNATPMP 找到默认网关并确认它响应 NAT-PMP
func discoverNATPMP(ctx context.Context, timeout time.Duration) (Gateway, error) {
	type result struct {
		gw  Gateway
		err error
	}
	ch := make(chan result, 1)
	go func() {
		ip, err := discoverGatewayIP()
		if err != nil {
			ch <- result{err: err}
			return
		}
		g := &natpmpGateway{client: natpmp.NewClientWithTimeout(ip, timeout), gateway: ip}
		if _, err := g.client.GetExternalAddress(); err != nil {
			ch <- result{err: err}
			return
		}
		ch <- result{gw: g}
	}()

	select {
	case r := <-ch:
		if r.err == nil {
			log.Debug("发现 NAT-PMP 网关", "gateway", r.gw.(*natpmpGateway).gateway)
		}
		return r.gw, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

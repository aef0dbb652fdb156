package portmap

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway 可编程网关
type fakeGateway struct {
	mu      sync.Mutex
	adds    atomic.Int32
	deleted []int

	AddPortMappingFunc func(proto Protocol, internalPort, externalPort int, lease time.Duration) (int, error)
	ExternalIPFunc     func() (net.IP, error)
}

var _ Gateway = (*fakeGateway)(nil)

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) ExternalIP(context.Context) (net.IP, error) {
	if g.ExternalIPFunc != nil {
		return g.ExternalIPFunc()
	}
	return net.IPv4(203, 0, 113, 9), nil
}

func (g *fakeGateway) AddPortMapping(_ context.Context, proto Protocol, internalPort, externalPort int, lease time.Duration) (int, error) {
	g.adds.Add(1)
	if g.AddPortMappingFunc != nil {
		return g.AddPortMappingFunc(proto, internalPort, externalPort, lease)
	}
	return externalPort, nil
}

func (g *fakeGateway) DeletePortMapping(_ context.Context, _ Protocol, _, externalPort int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, externalPort)
	return nil
}

func (g *fakeGateway) deletedPorts() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int(nil), g.deleted...)
}

// TestMapper_MapPort 测试映射记录与外部端点
func TestMapper_MapPort(t *testing.T) {
	gw := &fakeGateway{
		AddPortMappingFunc: func(_ Protocol, _, _ int, lease time.Duration) (int, error) {
			assert.Equal(t, time.Hour, lease)
			return 40001, nil
		},
	}
	m := NewMapper(gw, time.Hour)

	mp, err := m.MapPort(context.Background(), UDP, 9000)
	require.NoError(t, err)
	assert.Equal(t, 9000, mp.InternalPort)
	assert.Equal(t, 40001, mp.ExternalPort)
	assert.Len(t, m.Mappings(), 1)
	assert.Equal(t, "fake", m.Gateway())

	ep, err := m.ExternalEndpoint(context.Background(), mp)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9:40001", ep.String())
}

// TestMapper_MapPortError 测试映射失败返回 MappingError
func TestMapper_MapPortError(t *testing.T) {
	cause := errors.New("conflict")
	gw := &fakeGateway{
		AddPortMappingFunc: func(Protocol, int, int, time.Duration) (int, error) { return 0, cause },
	}
	m := NewMapper(gw, time.Hour)

	_, err := m.MapPort(context.Background(), TCP, 80)
	var me *MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, TCP, me.Protocol)
	assert.Equal(t, 80, me.Port)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, m.Mappings())

	_, err = m.MapPort(context.Background(), UDP, 0)
	assert.ErrorIs(t, err, ErrInvalidPort)
}

// TestMapper_UnmapUsesExternalPort 测试删除时使用网关分配的外部端口
func TestMapper_UnmapUsesExternalPort(t *testing.T) {
	gw := &fakeGateway{
		AddPortMappingFunc: func(Protocol, int, int, time.Duration) (int, error) { return 50000, nil },
	}
	m := NewMapper(gw, time.Hour)

	_, err := m.MapPort(context.Background(), UDP, 9000)
	require.NoError(t, err)
	require.NoError(t, m.UnmapPort(context.Background(), UDP, 9000))
	assert.Equal(t, []int{50000}, gw.deletedPorts())
	assert.Empty(t, m.Mappings())
}

// TestMapper_Close 测试关闭删除全部映射且之后不能再映射
func TestMapper_Close(t *testing.T) {
	gw := &fakeGateway{}
	m := NewMapper(gw, time.Hour)

	_, err := m.MapPort(context.Background(), UDP, 9000)
	require.NoError(t, err)
	_, err = m.MapPort(context.Background(), TCP, 9001)
	require.NoError(t, err)
	m.Start()

	require.NoError(t, m.Close(context.Background()))
	assert.ElementsMatch(t, []int{9000, 9001}, gw.deletedPorts())

	_, err = m.MapPort(context.Background(), UDP, 9002)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, m.Close(context.Background()))
}

// TestMapper_Renewal 测试租期过 2/3 后续期
func TestMapper_Renewal(t *testing.T) {
	clk := clock.NewMock()
	gw := &fakeGateway{}
	m := NewMapper(gw, time.Minute, WithClock(clk))

	_, err := m.MapPort(context.Background(), UDP, 9000)
	require.NoError(t, err)
	require.EqualValues(t, 1, gw.adds.Load())

	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		clk.Add(20 * time.Second)
		return gw.adds.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	mps := m.Mappings()
	require.Len(t, mps, 1)
	assert.True(t, clk.Now().Sub(mps[0].CreatedAt) < time.Minute)
}

// TestMapper_RenewSkipsFresh 测试未到期的映射不续期
func TestMapper_RenewSkipsFresh(t *testing.T) {
	clk := clock.NewMock()
	gw := &fakeGateway{}
	m := NewMapper(gw, time.Minute, WithClock(clk))

	_, err := m.MapPort(context.Background(), UDP, 9000)
	require.NoError(t, err)

	clk.Add(39 * time.Second)
	m.renew(context.Background())
	assert.EqualValues(t, 1, gw.adds.Load())

	clk.Add(time.Second)
	m.renew(context.Background())
	assert.EqualValues(t, 2, gw.adds.Load())
}

// TestDiscover_Order 测试 UPnP 优先，失败后回退 NAT-PMP
func TestDiscover_Order(t *testing.T) {
	origUPnP, origPMP := discoverUPnPFunc, discoverNATPMPFunc
	t.Cleanup(func() { discoverUPnPFunc, discoverNATPMPFunc = origUPnP, origPMP })

	var order []string
	discoverUPnPFunc = func(context.Context, net.IP, string) (Gateway, error) {
		order = append(order, "upnp")
		return nil, ErrNoGateway
	}
	discoverNATPMPFunc = func(context.Context, time.Duration) (Gateway, error) {
		order = append(order, "natpmp")
		return &fakeGateway{}, nil
	}

	cfg := DefaultConfig()
	cfg.Enabled = true
	m, err := Discover(context.Background(), cfg, net.IPv4(192, 168, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, "fake", m.Gateway())
	assert.Equal(t, []string{"upnp", "natpmp"}, order)

	cfg.EnableNATPMP = false
	_, err = Discover(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, ErrNoGateway)
}

// TestDiscover_Disabled 测试未启用
func TestDiscover_Disabled(t *testing.T) {
	_, err := Discover(context.Background(), DefaultConfig(), nil)
	assert.ErrorIs(t, err, ErrDisabled)
}

// TestConfig_Validate 测试配置验证
func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Enabled = true
	assert.NoError(t, cfg.Validate())

	cfg.EnableUPnP, cfg.EnableNATPMP = false, false
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Enabled = true
	cfg.Lease = time.Second
	assert.Error(t, cfg.Validate())
}

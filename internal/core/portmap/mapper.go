package portmap

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-natlink/internal/util/logger"
	"github.com/dep2p/go-natlink/pkg/types"
)

var log = logger.Logger("portmap")

// Mapping 一条端口映射
type Mapping struct {
	Protocol     Protocol
	InternalPort int
	ExternalPort int
	Lease        time.Duration
	CreatedAt    time.Time
}

type mappingKey struct {
	proto Protocol
	port  int
}

// Mapper 在一个网关上维护端口映射
type Mapper struct {
	gw    Gateway
	lease time.Duration
	clk   clock.Clock

	mu       sync.Mutex
	mappings map[mappingKey]*Mapping
	closed   bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// MapperOption 映射器选项
type MapperOption func(*Mapper)

// WithClock 注入时钟
func WithClock(clk clock.Clock) MapperOption {
	return func(m *Mapper) { m.clk = clk }
}

// NewMapper 在已发现的网关上创建映射器
func NewMapper(gw Gateway, lease time.Duration, opts ...MapperOption) *Mapper {
	m := &Mapper{
		gw:       gw,
		lease:    lease,
		clk:      clock.New(),
		mappings: make(map[mappingKey]*Mapping),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Discover 按配置发现网关
//
// localIP 是 UPnP 映射的内部客户端地址。
func Discover(ctx context.Context, cfg Config, localIP net.IP, opts ...MapperOption) (*Mapper, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.DiscoveryTimeout)
	defer cancel()

	var errs error
	if cfg.EnableUPnP {
		gw, err := discoverUPnPFunc(ctx, localIP, cfg.Description)
		if err == nil {
			return NewMapper(gw, cfg.Lease, opts...), nil
		}
		errs = multierr.Append(errs, fmt.Errorf("upnp: %w", err))
	}
	if cfg.EnableNATPMP {
		gw, err := discoverNATPMPFunc(ctx, cfg.DiscoveryTimeout)
		if err == nil {
			return NewMapper(gw, cfg.Lease, opts...), nil
		}
		errs = multierr.Append(errs, fmt.Errorf("natpmp: %w", err))
	}
	log.Debug("未发现网关", "error", errs)
	return nil, fmt.Errorf("%w: %v", ErrNoGateway, errs)
}

// 测试中替换
var (
	discoverUPnPFunc   = discoverUPnP
	discoverNATPMPFunc = discoverNATPMP
)

// Gateway 返回使用的网关协议名
func (m *Mapper) Gateway() string {
	return m.gw.Name()
}

// MapPort 请求把 port 映射到网关上的同号端口
//
// 网关可能分配不同的外部端口，以返回的 Mapping 为准。
func (m *Mapper) MapPort(ctx context.Context, proto Protocol, port int) (Mapping, error) {
	if port <= 0 || port > 65535 {
		return Mapping{}, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return Mapping{}, ErrClosed
	}

	ext, err := m.gw.AddPortMapping(ctx, proto, port, port, m.lease)
	if err != nil {
		return Mapping{}, &MappingError{Gateway: m.gw.Name(), Protocol: proto, Port: port, Cause: err}
	}

	mp := &Mapping{
		Protocol:     proto,
		InternalPort: port,
		ExternalPort: ext,
		Lease:        m.lease,
		CreatedAt:    m.clk.Now(),
	}
	m.mu.Lock()
	m.mappings[mappingKey{proto, port}] = mp
	m.mu.Unlock()

	log.Info("端口映射成功", "gateway", m.gw.Name(), "proto", proto, "internal", port, "external", ext)
	return *mp, nil
}

// UnmapPort 删除 MapPort 建立的映射
func (m *Mapper) UnmapPort(ctx context.Context, proto Protocol, port int) error {
	key := mappingKey{proto, port}
	m.mu.Lock()
	mp, ok := m.mappings[key]
	delete(m.mappings, key)
	m.mu.Unlock()

	ext := port
	if ok {
		ext = mp.ExternalPort
	}
	if err := m.gw.DeletePortMapping(ctx, proto, port, ext); err != nil {
		return &MappingError{Gateway: m.gw.Name(), Protocol: proto, Port: port, Cause: err}
	}
	return nil
}

// Mappings 返回当前映射
func (m *Mapper) Mappings() []Mapping {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Mapping, 0, len(m.mappings))
	for _, mp := range m.mappings {
		out = append(out, *mp)
	}
	return out
}

// ExternalAddress 返回网关的外部 IPv4 地址
func (m *Mapper) ExternalAddress(ctx context.Context) (net.IP, error) {
	ip, err := m.gw.ExternalIP(ctx)
	if err != nil {
		return nil, fmt.Errorf("portmap: %s external address: %w", m.gw.Name(), err)
	}
	return ip, nil
}

// ExternalEndpoint 返回映射在网关外侧的端点
func (m *Mapper) ExternalEndpoint(ctx context.Context, mp Mapping) (types.Endpoint, error) {
	ip, err := m.ExternalAddress(ctx)
	if err != nil {
		return types.Endpoint{}, err
	}
	return types.EndpointFromBytes(ip.To4(), uint16(mp.ExternalPort))
}

// ============================================================================
//                              续期
// ============================================================================

// Start 启动续期循环，每 lease/3 检查一次，租期过 2/3 的映射被重新请求
func (m *Mapper) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil || m.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.renewLoop(ctx)
	}()
}

// Stop 停止续期循环
func (m *Mapper) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Mapper) renewLoop(ctx context.Context) {
	ticker := m.clk.Ticker(m.lease / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.renew(ctx)
		}
	}
}

func (m *Mapper) renew(ctx context.Context) {
	now := m.clk.Now()
	threshold := m.lease * 2 / 3

	m.mu.Lock()
	due := make([]Mapping, 0, len(m.mappings))
	for _, mp := range m.mappings {
		if now.Sub(mp.CreatedAt) >= threshold {
			due = append(due, *mp)
		}
	}
	m.mu.Unlock()

	for _, mp := range due {
		if _, err := m.MapPort(ctx, mp.Protocol, mp.InternalPort); err != nil {
			log.Warn("端口映射续期失败", "proto", mp.Protocol, "port", mp.InternalPort, "error", err)
		}
	}
}

// Close 停止续期并删除全部映射
func (m *Mapper) Close(ctx context.Context) error {
	m.Stop()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	all := make([]Mapping, 0, len(m.mappings))
	for _, mp := range m.mappings {
		all = append(all, *mp)
	}
	m.mu.Unlock()

	var errs error
	for _, mp := range all {
		errs = multierr.Append(errs, m.UnmapPort(ctx, mp.Protocol, mp.InternalPort))
	}
	return errs
}

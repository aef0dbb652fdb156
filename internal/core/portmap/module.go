package portmap

import (
	"context"
	"net"
	"sync"

	"go.uber.org/fx"

	"github.com/dep2p/go-natlink/config"
	"github.com/dep2p/go-natlink/internal/core/netinfo"
	"github.com/dep2p/go-natlink/pkg/types"
)

// Service 按需发现网关并维护映射
//
// 第一次 Expose 时才做网关发现；发现失败不影响调用方继续运行。
type Service struct {
	cfg     Config
	localIP net.IP
	opts    []MapperOption

	mu     sync.Mutex
	mapper *Mapper
}

// NewService 创建服务
func NewService(cfg Config, localIP net.IP, opts ...MapperOption) *Service {
	return &Service{cfg: cfg, localIP: localIP, opts: opts}
}

// Enabled 是否启用
func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// Expose 映射 port 并启动续期，返回外部端点
func (s *Service) Expose(ctx context.Context, proto Protocol, port int) (types.Endpoint, error) {
	if !s.cfg.Enabled {
		return types.Endpoint{}, ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mapper == nil {
		m, err := Discover(ctx, s.cfg, s.localIP, s.opts...)
		if err != nil {
			return types.Endpoint{}, err
		}
		s.mapper = m
	}

	mp, err := s.mapper.MapPort(ctx, proto, port)
	if err != nil {
		return types.Endpoint{}, err
	}
	s.mapper.Start()

	ep, err := s.mapper.ExternalEndpoint(ctx, mp)
	if err != nil {
		log.Debug("获取外部地址失败", "error", err)
		return types.NewEndpoint([4]byte{}, uint16(mp.ExternalPort)), nil
	}
	return ep, nil
}

// Mapper 返回已发现的映射器，未发现时为 nil
func (s *Service) Mapper() *Mapper {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapper
}

// Close 删除全部映射
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	m := s.mapper
	s.mu.Unlock()
	if m == nil {
		return nil
	}
	return m.Close(ctx)
}

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Lifecycle  fx.Lifecycle
	UnifiedCfg *config.Config `optional:"true"`
	Info       *netinfo.Info  `optional:"true"`
}

// ProvideService 创建端口映射服务
func ProvideService(in ModuleInput) (*Service, error) {
	cfg := ConfigFromUnified(in.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var localIP net.IP
	if in.Info != nil {
		if ep, err := in.Info.PreferredEndpoint(0); err == nil {
			ip := ep.IP()
			localIP = net.IPv4(ip[0], ip[1], ip[2], ip[3])
		}
	}

	svc := NewService(cfg, localIP)
	in.Lifecycle.Append(fx.Hook{
		OnStop: svc.Close,
	})
	return svc, nil
}

// Module 返回 fx 模块
//
// 生命周期:
//   - OnStop: 删除全部映射
func Module() fx.Option {
	return fx.Module("portmap",
		fx.Provide(ProvideService),
	)
}

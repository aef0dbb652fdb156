package natlink

import (
	"context"
	"sync"

	"go.uber.org/fx"

	"github.com/dep2p/go-natlink/config"
	"github.com/dep2p/go-natlink/internal/core/coord"
	"github.com/dep2p/go-natlink/internal/core/metrics"
	"github.com/dep2p/go-natlink/internal/core/nat"
	"github.com/dep2p/go-natlink/internal/core/netinfo"
	"github.com/dep2p/go-natlink/internal/core/portmap"
	"github.com/dep2p/go-natlink/pkg/types"
)

// App 一个装配好的 natlink 进程
type App struct {
	app  *fx.App
	role Role
	cfg  *config.Config

	host    *coord.Host
	client  *coord.Client
	nat     *nat.Factory
	info    *netinfo.Info
	stun    *netinfo.STUNClient
	portmap *portmap.Service
	counter *metrics.BandwidthCounter

	mu       sync.Mutex
	started  bool
	external types.Endpoint
}

// New 按选项装配应用，不启动任何后台活动
func New(opts ...Option) (*App, error) {
	o := &options{config: config.NewConfig()}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{role: o.role, cfg: o.config}
	app, err := buildFxApp(o, a)
	if err != nil {
		return nil, err
	}
	a.app = app
	return a, nil
}

// Start 启动生命周期（套接字轮询、/metrics、端口映射）
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	a.mu.Unlock()
	return a.app.Start(ctx)
}

// Stop 停止生命周期，关闭全部组件
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return ErrNotStarted
	}
	a.started = false
	a.mu.Unlock()
	return a.app.Stop(ctx)
}

// Role 返回角色
func (a *App) Role() Role { return a.role }

// Config 返回使用的配置
func (a *App) Config() *config.Config { return a.cfg }

// Host 协调主机，非 RoleHost 时为 nil
func (a *App) Host() *coord.Host { return a.host }

// Client 协调客户端，非 RoleClient 时为 nil
func (a *App) Client() *coord.Client { return a.client }

// NAT ICE 会话工厂
func (a *App) NAT() *nat.Factory { return a.nat }

// NetInfo 启动时发现的本机网络信息
func (a *App) NetInfo() *netinfo.Info { return a.info }

// STUN 外部地址查询
func (a *App) STUN() *netinfo.STUNClient { return a.stun }

// PortMap 端口映射服务
func (a *App) PortMap() *portmap.Service { return a.portmap }

// Bandwidth 流量计数
func (a *App) Bandwidth() *metrics.BandwidthCounter { return a.counter }

// ExternalEndpoint 端口映射得到的外部端点，未映射时为零值
func (a *App) ExternalEndpoint() types.Endpoint {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.external
}

func (a *App) setExternal(ep types.Endpoint) {
	a.mu.Lock()
	a.external = ep
	a.mu.Unlock()
}

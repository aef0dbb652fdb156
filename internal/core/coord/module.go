package coord

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-natlink/config"
	"github.com/dep2p/go-natlink/pkg/interfaces"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// HostInput 主机模块依赖
type HostInput struct {
	fx.In

	Lifecycle  fx.Lifecycle
	UnifiedCfg *config.Config `optional:"true"`
	Store      interfaces.Store
	Reporter   interfaces.BandwidthReporter `optional:"true"`
}

// ClientInput 客户端模块依赖
type ClientInput struct {
	fx.In

	Lifecycle  fx.Lifecycle
	UnifiedCfg *config.Config               `optional:"true"`
	Reporter   interfaces.BandwidthReporter `optional:"true"`
}

// ============================================================================
//                              模块定义
// ============================================================================

// HostModule 返回协调主机 Fx 模块，需要 store.Module 提供 interfaces.Store
//
// 生命周期:
//   - OnStart: 启动轮询循环
//   - OnStop: 停止轮询循环，关闭套接字和存储
func HostModule() fx.Option {
	return fx.Module("coord.host",
		fx.Provide(ProvideHost),
	)
}

// ClientModule 返回协调客户端 Fx 模块
func ClientModule() fx.Option {
	return fx.Module("coord.client",
		fx.Provide(ProvideClient),
	)
}

// ProvideHost 创建主机并注册生命周期
func ProvideHost(in HostInput) (*Host, error) {
	cfg := HostConfigFromUnified(in.UnifiedCfg)
	h, err := NewHost(cfg, in.Store, WithBandwidth(in.Reporter))
	if err != nil {
		return nil, err
	}
	register(in.Lifecycle, NewRunner(h, pollInterval(in.UnifiedCfg)), h.Close)
	return h, nil
}

// ProvideClient 创建客户端并注册生命周期
func ProvideClient(in ClientInput) (*Client, error) {
	cfg, err := ClientConfigFromUnified(in.UnifiedCfg)
	if err != nil {
		return nil, err
	}
	c, err := NewClient(cfg, WithBandwidth(in.Reporter))
	if err != nil {
		return nil, err
	}
	register(in.Lifecycle, NewRunner(c, pollInterval(in.UnifiedCfg)), c.Close)
	return c, nil
}

func pollInterval(cfg *config.Config) time.Duration {
	if cfg == nil || cfg.Coord.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return cfg.Coord.PollInterval.Duration()
}

func register(lc fx.Lifecycle, r *Runner, closeFn func() error) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return r.Start()
		},
		OnStop: func(_ context.Context) error {
			r.Stop()
			if err := closeFn(); err != nil {
				log.Warn("关闭协调端失败", "error", err)
				return err
			}
			return nil
		},
	})
}

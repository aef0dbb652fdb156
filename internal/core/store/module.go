package store

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-natlink/config"
	"github.com/dep2p/go-natlink/pkg/interfaces"
)

// ModuleInput Store 模块依赖参数
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// ModuleOutput Store 模块提供的结果
type ModuleOutput struct {
	fx.Out

	Store  interfaces.Store
	Config Config
}

// Module 返回 Store Fx 模块
//
// 提供未打开的 interfaces.Store：由协调主机在构造时 Connect。
//
// 生命周期:
//   - OnStop: 关闭数据库
func Module() fx.Option {
	return fx.Module("store",
		fx.Provide(ProvideStore),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideStore 提供存储和配置
func ProvideStore(in ModuleInput) (ModuleOutput, error) {
	cfg := ConfigFromUnified(in.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{
		Store:  New(cfg),
		Config: cfg,
	}, nil
}

func registerLifecycle(lc fx.Lifecycle, s interfaces.Store) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if err := s.Close(); err != nil {
				log.Warn("存储关闭失败", "error", err)
				return err
			}
			return nil
		},
	})
}

package netinfo

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-natlink/config"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Info   *Info
	STUN   *STUNClient
	Config Config
}

// ProvideServices 在启动时发现一次本机网络信息
func ProvideServices(in ModuleInput) (ModuleOutput, error) {
	cfg := ConfigFromUnified(in.UnifiedCfg)
	info, err := Discover(cfg.DiscoverOptions()...)
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{
		Info:   info,
		STUN:   cfg.NewSTUNClient(),
		Config: cfg,
	}, nil
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module("netinfo",
		fx.Provide(ProvideServices),
	)
}

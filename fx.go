package natlink

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-natlink/internal/core/coord"
	"github.com/dep2p/go-natlink/internal/core/metrics"
	"github.com/dep2p/go-natlink/internal/core/nat"
	"github.com/dep2p/go-natlink/internal/core/netinfo"
	"github.com/dep2p/go-natlink/internal/core/portmap"
	"github.com/dep2p/go-natlink/internal/core/store"
	"github.com/dep2p/go-natlink/internal/util/logger"
)

var fxLog = logger.Logger("natlink.fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序：
//  1. 公共组件：metrics → netinfo → nat → portmap
//  2. 按角色：store + coord.host（端口映射挂在主机上），或 coord.client
//  3. 调用方追加的 fx 选项
func buildFxApp(o *options, a *App) (*fx.App, error) {
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	modules := []fx.Option{
		fx.Supply(o.config),

		metrics.Module(),
		netinfo.Module(),
		nat.Module(),
		portmap.Module(),

		fx.Populate(&a.counter, &a.info, &a.stun, &a.nat, &a.portmap),
	}

	switch o.role {
	case RoleHost:
		modules = append(modules,
			store.Module(),
			coord.HostModule(),
			fx.Invoke(a.wireHost),
		)
	case RoleClient:
		modules = append(modules,
			coord.ClientModule(),
			fx.Populate(&a.client),
		)
	}

	modules = append(modules, o.fxOptions...)
	modules = append(modules, fx.WithLogger(fxLogger(o.verboseFx)))

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	fxLog.Debug("应用已装配", "role", o.role)
	return app, nil
}

// fxLogger 返回 fx 事件日志：verbose 时输出到 zap 开发日志，否则丢弃
func fxLogger(verbose bool) func() fxevent.Logger {
	return func() fxevent.Logger {
		if !verbose {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}
		zl, err := zap.NewDevelopment()
		if err != nil {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}
		return &fxevent.ZapLogger{Logger: zl}
	}
}

// wireHost 记录主机，并在启动时为监听端口请求网关映射
//
// 映射失败只记录日志，主机照常运行。
func (a *App) wireHost(lc fx.Lifecycle, h *coord.Host, svc *portmap.Service) {
	a.host = h
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !svc.Enabled() {
				return nil
			}
			port := int(h.LocalEndpoint().Port())
			ep, err := svc.Expose(ctx, portmap.UDP, port)
			if err != nil {
				fxLog.Warn("协调端口映射失败", "port", port, "error", err)
				return nil
			}
			a.setExternal(ep)
			fxLog.Info("协调端口已映射", "port", port, "external", ep)
			return nil
		},
	})
}

package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-natlink/config"
	"github.com/dep2p/go-natlink/internal/util/logger"
	"github.com/dep2p/go-natlink/pkg/interfaces"
)

var log = logger.Logger("metrics")

// Config 指标配置
type Config struct {
	// Enabled 是否统计流量
	Enabled bool

	// Addr /metrics 监听地址，为空则不启动 HTTP 服务
	Addr string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// ConfigFromUnified 从统一配置创建指标配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
	}
}

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Lifecycle  fx.Lifecycle
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Counter  *BandwidthCounter
	Reporter interfaces.BandwidthReporter
	Registry *prometheus.Registry
}

// ProvideServices 创建计数器与 Registry，并按配置启动 /metrics 服务
//
// 未启用时 Reporter 为 nil，套接字不做统计。
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	cfg := ConfigFromUnified(input.UnifiedCfg)

	bwc := NewBandwidthCounter(nil)
	reg, err := NewRegistry(bwc)
	if err != nil {
		return ModuleOutput{}, err
	}
	out := ModuleOutput{Counter: bwc, Registry: reg}
	if cfg.Enabled {
		out.Reporter = bwc
	}

	if cfg.Addr != "" {
		srv := &http.Server{Handler: Handler(reg), ReadHeaderTimeout: 5 * time.Second}
		input.Lifecycle.Append(fx.Hook{
			OnStart: func(context.Context) error {
				ln, err := net.Listen("tcp", cfg.Addr)
				if err != nil {
					return err
				}
				log.Info("指标服务已监听", "addr", ln.Addr().String())
				go func() {
					if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Warn("指标服务异常退出", "error", err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
		})
	}
	return out, nil
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideServices),
	)
}

package nat

import (
	"context"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-natlink/config"
	"github.com/dep2p/go-natlink/pkg/interfaces"
)

// ============================================================================
//                              会话工厂
// ============================================================================

// Factory 按统一配置创建会话，并在关闭时释放仍然存活的会话
type Factory struct {
	cfg  Config
	opts []Option

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewFactory 创建会话工厂
func NewFactory(cfg Config, opts ...Option) *Factory {
	return &Factory{
		cfg:      cfg,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Config 返回会话配置
func (f *Factory) Config() Config {
	return f.cfg
}

// NewSession 创建新会话
func (f *Factory) NewSession() (*Session, error) {
	s, err := NewSession(f.cfg, f.opts...)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.sessions[s.ID()] = s
	f.mu.Unlock()
	return s, nil
}

// Release 关闭并移除会话
func (f *Factory) Release(s *Session) error {
	f.mu.Lock()
	delete(f.sessions, s.ID())
	f.mu.Unlock()
	return s.Close()
}

// Active 返回仍由工厂持有的会话数
func (f *Factory) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// Close 关闭全部会话
func (f *Factory) Close() error {
	f.mu.Lock()
	sessions := f.sessions
	f.sessions = make(map[string]*Session)
	f.mu.Unlock()

	var err error
	for _, s := range sessions {
		err = multierr.Append(err, s.Close())
	}
	return err
}

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Lifecycle  fx.Lifecycle
	UnifiedCfg *config.Config               `optional:"true"`
	Reporter   interfaces.BandwidthReporter `optional:"true"`
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("nat",
		fx.Provide(ProvideFactory),
	)
}

// ProvideFactory 提供会话工厂
func ProvideFactory(in ModuleInput) (*Factory, error) {
	cfg := ConfigFromUnified(in.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := NewFactory(cfg, WithBandwidth(in.Reporter))
	in.Lifecycle.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return f.Close()
		},
	})
	return f, nil
}

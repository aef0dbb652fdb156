package natlink

import (
	"fmt"
	"strings"

	"go.uber.org/fx"

	"github.com/dep2p/go-natlink/config"
)

// Role 进程在协调协议中的角色
type Role int

const (
	// RoleNone 不加载协调端
	RoleNone Role = iota
	// RoleHost 协调主机
	RoleHost
	// RoleClient 协调客户端
	RoleClient
)

// String 返回角色名
func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleClient:
		return "client"
	default:
		return "none"
	}
}

// ParseRole 解析角色名
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return RoleNone, nil
	case "host":
		return RoleHost, nil
	case "client":
		return RoleClient, nil
	}
	return RoleNone, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

type options struct {
	config    *config.Config
	role      Role
	verboseFx bool
	fxOptions []fx.Option
}

// Option 应用选项
type Option func(*options)

// WithConfig 使用统一配置，未设置时使用 config.NewConfig()
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.config = cfg
		}
	}
}

// WithRole 设置协调角色
func WithRole(r Role) Option {
	return func(o *options) { o.role = r }
}

// WithVerboseFx 输出 fx 装配事件
func WithVerboseFx(v bool) Option {
	return func(o *options) { o.verboseFx = v }
}

// WithFxOption 追加自定义 fx 选项
func WithFxOption(opts ...fx.Option) Option {
	return func(o *options) { o.fxOptions = append(o.fxOptions, opts...) }
}

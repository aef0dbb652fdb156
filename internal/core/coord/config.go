package coord

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-natlink/config"
	"github.com/dep2p/go-natlink/pkg/interfaces"
	"github.com/dep2p/go-natlink/pkg/types"
)

// 默认值
const (
	DefaultListenPort     = 9000
	DefaultTable          = "clients"
	DefaultStorePath      = "coordDB.db"
	DefaultSendInterval   = 2 * time.Second
	DefaultLivenessWindow = 6 * time.Second
	DefaultPollInterval   = 10 * time.Millisecond
)

// ============================================================================
//                              HostConfig
// ============================================================================

// HostConfig 协调主机配置
type HostConfig struct {
	// ListenPort 监听端口
	ListenPort uint16

	// Table 表名
	Table string

	// Schema 表结构
	Schema []types.TableField

	// StorePath 传给 Store.Connect 的路径
	StorePath string

	// LivenessWindow 最近收到数据报的窗口，用于 IsConnected
	LivenessWindow time.Duration
}

// DefaultHostConfig 返回默认主机配置
func DefaultHostConfig() HostConfig {
	return HostConfig{
		ListenPort: DefaultListenPort,
		Table:      DefaultTable,
		Schema: []types.TableField{
			{Name: "id", Kind: types.FieldDirect},
			{Name: "name", Kind: types.FieldQuoted},
			{Name: "sdp", Kind: types.FieldQuoted},
		},
		StorePath:      DefaultStorePath,
		LivenessWindow: DefaultLivenessWindow,
	}
}

// HostConfigFromUnified 从统一配置创建主机配置
func HostConfigFromUnified(cfg *config.Config) HostConfig {
	hc := DefaultHostConfig()
	if cfg == nil {
		return hc
	}
	hc.ListenPort = cfg.Coord.ListenPort
	if cfg.Coord.Table != "" {
		hc.Table = cfg.Coord.Table
	}
	if len(cfg.Coord.Schema) > 0 {
		hc.Schema = cfg.Coord.Schema
	}
	if cfg.Storage.Path != "" {
		hc.StorePath = cfg.Storage.Path
	}
	if cfg.Coord.LivenessWindow > 0 {
		hc.LivenessWindow = cfg.Coord.LivenessWindow.Duration()
	}
	return hc
}

// Validate 验证主机配置
func (c HostConfig) Validate() error {
	if c.Table == "" {
		return fmt.Errorf("coord: host table must not be empty")
	}
	if len(c.Schema) == 0 {
		return ErrEmptySchema
	}
	if c.LivenessWindow <= 0 {
		return fmt.Errorf("coord: liveness window must be positive")
	}
	return nil
}

// ============================================================================
//                              ClientConfig
// ============================================================================

// ClientConfig 协调客户端配置
type ClientConfig struct {
	// HostEndpoint 主机端点
	HostEndpoint types.Endpoint

	// SendInterval 推送间隔
	SendInterval time.Duration

	// LivenessWindow 连通窗口（含边界）
	LivenessWindow time.Duration
}

// DefaultClientConfig 返回默认客户端配置，主机端点需要调用方填写
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendInterval:   DefaultSendInterval,
		LivenessWindow: DefaultLivenessWindow,
	}
}

// ClientConfigFromUnified 从统一配置创建客户端配置
func ClientConfigFromUnified(cfg *config.Config) (ClientConfig, error) {
	cc := DefaultClientConfig()
	if cfg == nil {
		return cc, nil
	}
	if cfg.Coord.HostEndpoint != "" {
		ep, err := types.ResolveEndpoint(cfg.Coord.HostEndpoint)
		if err != nil {
			return cc, fmt.Errorf("coord: host endpoint: %w", err)
		}
		cc.HostEndpoint = ep
	}
	if cfg.Coord.SendInterval > 0 {
		cc.SendInterval = cfg.Coord.SendInterval.Duration()
	}
	if cfg.Coord.LivenessWindow > 0 {
		cc.LivenessWindow = cfg.Coord.LivenessWindow.Duration()
	}
	return cc, nil
}

// Validate 验证客户端配置
func (c ClientConfig) Validate() error {
	if !c.HostEndpoint.IsSpecified() {
		return ErrNoHostEndpoint
	}
	if c.SendInterval <= 0 || c.LivenessWindow <= 0 {
		return fmt.Errorf("coord: intervals must be positive")
	}
	return nil
}

// ============================================================================
//                              选项
// ============================================================================

type options struct {
	conn     interfaces.DatagramConn
	clock    clock.Clock
	reporter interfaces.BandwidthReporter
}

// Option 主机/客户端选项
type Option func(*options)

func buildOptions(opts []Option) options {
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithConn 使用已有的数据报套接字，主机不再自行绑定
func WithConn(conn interfaces.DatagramConn) Option {
	return func(o *options) { o.conn = conn }
}

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		if clk != nil {
			o.clock = clk
		}
	}
}

// WithBandwidth 设置流量统计，只作用于自行创建的套接字
func WithBandwidth(r interfaces.BandwidthReporter) Option {
	return func(o *options) { o.reporter = r }
}

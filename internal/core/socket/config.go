package socket

import (
	"time"

	"github.com/dep2p/go-natlink/pkg/interfaces"
	"github.com/dep2p/go-natlink/pkg/types"
)

// 默认参数
const (
	// DefaultOSBufferSize 内核收发缓冲大小
	DefaultOSBufferSize = 10 * 1024 * 1024

	// DefaultListenBacklog 监听队列长度
	DefaultListenBacklog = 128

	// DefaultWorkerInterval 线程化套接字的工作周期
	DefaultWorkerInterval = time.Millisecond

	// DefaultScratchSize 工作协程单次读取的缓冲大小
	DefaultScratchSize = 256 * 1024

	// DefaultWriteChunkSize 工作协程单次写入的上限
	DefaultWriteChunkSize = 50000

	// DefaultReadinessTimeout RadioSocket 的就绪检查时长
	DefaultReadinessTimeout = 50 * time.Microsecond

	// DefaultRadioChannel RadioSocket 连接时使用的 RFCOMM 通道
	DefaultRadioChannel = 1
)

// Config 套接字配置
type Config struct {
	// OSBufferSize SO_RCVBUF / SO_SNDBUF
	OSBufferSize int

	// Broadcast 数据报套接字是否允许广播
	Broadcast bool

	// ListenBacklog 监听队列长度
	ListenBacklog int

	// WorkerInterval 线程化套接字的工作周期
	WorkerInterval time.Duration

	// ScratchSize 工作协程读取缓冲
	ScratchSize int

	// WriteChunkSize 工作协程单次写入上限
	WriteChunkSize int

	// ReadinessTimeout RadioSocket 就绪检查时长
	ReadinessTimeout time.Duration

	// RadioChannel RadioSocket 连接时的 RFCOMM 通道
	RadioChannel uint8

	// Service RadioSocket 监听时发布的服务记录
	Service ServiceRecord

	// Advertiser 服务记录发布者，nil 表示不发布
	Advertiser ServiceAdvertiser

	// Reporter 流量统计，可以为 nil
	Reporter interfaces.BandwidthReporter
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		OSBufferSize:     DefaultOSBufferSize,
		ListenBacklog:    DefaultListenBacklog,
		WorkerInterval:   DefaultWorkerInterval,
		ScratchSize:      DefaultScratchSize,
		WriteChunkSize:   DefaultWriteChunkSize,
		ReadinessTimeout: DefaultReadinessTimeout,
		RadioChannel:     DefaultRadioChannel,
		Service:          DefaultServiceRecord(),
	}
}

func (c *Config) sent(kind types.SocketKind, n int) {
	if c.Reporter != nil && n > 0 {
		c.Reporter.LogSent(string(kind), int64(n))
	}
}

func (c *Config) received(kind types.SocketKind, n int) {
	if c.Reporter != nil && n > 0 {
		c.Reporter.LogRecv(string(kind), int64(n))
	}
}

// Option 配置选项
type Option func(*Config)

func buildConfig(opts []Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.WorkerInterval <= 0 {
		cfg.WorkerInterval = DefaultWorkerInterval
	}
	if cfg.ScratchSize <= 0 {
		cfg.ScratchSize = DefaultScratchSize
	}
	if cfg.WriteChunkSize <= 0 {
		cfg.WriteChunkSize = DefaultWriteChunkSize
	}
	if cfg.ListenBacklog <= 0 {
		cfg.ListenBacklog = DefaultListenBacklog
	}
	return cfg
}

// WithConfig 以 cfg 为基础，后续选项在其上覆盖
func WithConfig(cfg Config) Option {
	return func(c *Config) { *c = cfg }
}

// WithBroadcast 允许数据报套接字发送广播
func WithBroadcast() Option {
	return func(c *Config) { c.Broadcast = true }
}

// WithBandwidth 记录收发字节数
func WithBandwidth(r interfaces.BandwidthReporter) Option {
	return func(c *Config) { c.Reporter = r }
}

// WithOSBufferSize 设置内核收发缓冲大小，0 表示保持系统默认
func WithOSBufferSize(n int) Option {
	return func(c *Config) { c.OSBufferSize = n }
}

// WithWorkerInterval 设置线程化套接字的工作周期
func WithWorkerInterval(d time.Duration) Option {
	return func(c *Config) { c.WorkerInterval = d }
}

// WithWriteChunkSize 设置工作协程单次写入上限
func WithWriteChunkSize(n int) Option {
	return func(c *Config) { c.WriteChunkSize = n }
}

// WithAdvertiser 设置 RadioSocket 的服务记录发布者
func WithAdvertiser(a ServiceAdvertiser) Option {
	return func(c *Config) { c.Advertiser = a }
}

// WithService 设置 RadioSocket 发布的服务记录
func WithService(rec ServiceRecord) Option {
	return func(c *Config) { c.Service = rec }
}

// WithRadioChannel 设置 RadioSocket 连接时的 RFCOMM 通道
func WithRadioChannel(ch uint8) Option {
	return func(c *Config) { c.RadioChannel = ch }
}

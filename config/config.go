// Package config 提供统一的配置管理
//
// 主 Config 聚合所有组件的子配置，每个子配置在独立文件中定义，
// 支持从 JSON 加载与保存：
//
//	cfg := config.NewConfig()
//	cfg.Coord.ListenPort = 9000
//	cfg.PortMap.Enabled = true
//
//	// 从文件加载
//	cfg, err := config.LoadFile("natlink.json")
//
// 各组件的 module.go 通过 ConfigFromUnified 从这里取值。
package config

// Config natlink 的完整配置
type Config struct {
	// Log 日志
	Log LogConfig `json:"log"`

	// Socket 套接字原语
	Socket SocketConfig `json:"socket"`

	// NAT ICE 连通性会话
	NAT NATConfig `json:"nat"`

	// Coord 协调协议
	Coord CoordConfig `json:"coord"`

	// Storage 协调主机的存储
	Storage StorageConfig `json:"storage"`

	// Discovery 主机发现
	Discovery DiscoveryConfig `json:"discovery"`

	// PortMap 网关端口映射
	PortMap PortMapConfig `json:"portmap"`

	// Metrics 流量统计
	Metrics MetricsConfig `json:"metrics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Log:       DefaultLogConfig(),
		Socket:    DefaultSocketConfig(),
		NAT:       DefaultNATConfig(),
		Coord:     DefaultCoordConfig(),
		Storage:   DefaultStorageConfig(),
		Discovery: DefaultDiscoveryConfig(),
		PortMap:   DefaultPortMapConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// Validate 验证所有子配置
func (c *Config) Validate() error {
	for _, v := range []interface{ Validate() error }{
		c.Log, c.Socket, c.NAT, c.Coord, c.Storage, c.Discovery, c.PortMap, c.Metrics,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dep2p/go-natlink/pkg/types"
)

// CoordConfig 协调协议配置
type CoordConfig struct {
	// ListenPort 主机监听端口
	ListenPort uint16 `json:"listen_port"`

	// HostEndpoint 客户端连接的主机，"host:port"
	HostEndpoint string `json:"host_endpoint,omitempty"`

	// Table 主机表名
	Table string `json:"table"`

	// Schema 主机表结构，顺序即写入顺序
	Schema []types.TableField `json:"schema"`

	// SendInterval 客户端推送间隔
	SendInterval Duration `json:"send_interval"`

	// LivenessWindow 客户端判定连通的窗口
	LivenessWindow Duration `json:"liveness_window"`

	// PollInterval 应用驱动 Update 的间隔
	PollInterval Duration `json:"poll_interval"`
}

// DefaultCoordConfig 返回默认协调配置
func DefaultCoordConfig() CoordConfig {
	return CoordConfig{
		ListenPort: 9000,
		Table:      "clients",
		Schema: []types.TableField{
			{Name: "id", Kind: types.FieldDirect},
			{Name: "name", Kind: types.FieldQuoted},
			{Name: "sdp", Kind: types.FieldQuoted},
		},
		SendInterval:   Duration(2 * time.Second),
		LivenessWindow: Duration(6 * time.Second),
		PollInterval:   Duration(10 * time.Millisecond),
	}
}

// Validate 验证协调配置
func (c CoordConfig) Validate() error {
	if c.Table == "" {
		return errors.New("coord table must not be empty")
	}
	if len(c.Schema) == 0 {
		return errors.New("coord schema must not be empty")
	}
	seen := make(map[string]bool, len(c.Schema))
	for _, f := range c.Schema {
		if f.Name == "" {
			return errors.New("coord schema field name must not be empty")
		}
		if seen[f.Name] {
			return fmt.Errorf("coord schema field %q repeated", f.Name)
		}
		seen[f.Name] = true
	}
	if c.SendInterval <= 0 || c.LivenessWindow <= 0 || c.PollInterval <= 0 {
		return errors.New("coord intervals must be positive")
	}
	return nil
}

// StorageConfig 协调主机存储配置
type StorageConfig struct {
	// Path SQLite 数据库文件，":memory:" 表示内存库
	Path string `json:"path"`
}

// DefaultStorageConfig 返回默认存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{Path: "coordDB.db"}
}

// Validate 验证存储配置
func (c StorageConfig) Validate() error {
	if c.Path == "" {
		return errors.New("storage path must not be empty")
	}
	return nil
}

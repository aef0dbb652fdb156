// Package interfaces 定义 natlink 公共接口
//
// 本文件定义结构化存储接口。协调主机把客户端记录写入一张小表，并在其上执行临时查询。
package interfaces

import "github.com/dep2p/go-natlink/pkg/types"

// RowFunc 逐行回调，可以为 nil
type RowFunc func(row types.Row)

// Store 结构化存储
//
// 实现不要求并发安全：协调主机在自己的 Update 调用中独占使用。
type Store interface {
	// Connect 打开存储
	Connect(path string) error

	// GenerateTable 按字段顺序建表（已存在则跳过），第一个字段为主键
	GenerateTable(name string, fields []types.TableField) error

	// RunSQL 执行查询，返回全部行，同时对每行调用 fn
	RunSQL(query string, fn RowFunc, args ...any) ([]types.Row, error)

	// Query 只读查询，拒绝任何写入或 DDL
	Query(query string, fn RowFunc) ([]types.Row, error)

	// Exec 执行写语句，返回受影响的行数
	Exec(query string, args ...any) (int64, error)

	// Close 关闭存储
	Close() error
}

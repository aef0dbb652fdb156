package store

import "errors"

var (
	// ErrNotConnected 存储尚未打开
	ErrNotConnected = errors.New("store: not connected")

	// ErrAlreadyConnected 存储已经打开
	ErrAlreadyConnected = errors.New("store: already connected")

	// ErrClosed 存储已关闭
	ErrClosed = errors.New("store: closed")

	// ErrInvalidIdentifier 表名或列名不合法
	ErrInvalidIdentifier = errors.New("store: invalid identifier")

	// ErrReadOnly 只读查询收到了非 SELECT/WITH 语句或多条语句
	ErrReadOnly = errors.New("store: statement not allowed in read-only query")

	// ErrEmptySchema 建表字段为空
	ErrEmptySchema = errors.New("store: empty schema")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("store: invalid config")
)

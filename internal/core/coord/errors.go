package coord

import "errors"

var (
	// ErrPayloadTooLarge 出站消息超过 MaxPayloadSize
	ErrPayloadTooLarge = errors.New("coord: payload too large")

	// ErrMalformedRecord 入站数据报不是扁平 JSON 对象
	ErrMalformedRecord = errors.New("coord: malformed record")

	// ErrMalformedQuery 查询字段不是合法的 base64
	ErrMalformedQuery = errors.New("coord: malformed query")

	// ErrNoKnownFields 推送记录中没有表结构里的字段
	ErrNoKnownFields = errors.New("coord: record has no known fields")

	// ErrEmptySchema 表结构为空
	ErrEmptySchema = errors.New("coord: empty schema")

	// ErrDuplicateField 表结构字段重复
	ErrDuplicateField = errors.New("coord: duplicate schema field")

	// ErrNoHostEndpoint 客户端未指定主机端点
	ErrNoHostEndpoint = errors.New("coord: host endpoint not specified")

	// ErrClosed 已关闭
	ErrClosed = errors.New("coord: closed")

	// ErrRunnerStarted Runner 已启动
	ErrRunnerStarted = errors.New("coord: runner already started")
)

// ErrReservedKey 键名与协议字段冲突
var ErrReservedKey = errors.New("coord: reserved key")

// Package types 定义 natlink 的基础类型
//
// 本文件定义公共错误。
package types

import "errors"

var (
	// ErrInvalidEndpoint 端点格式无效或不是 IPv4
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrEndpointUnspecified 发送目标未指定地址或端口
	ErrEndpointUnspecified = errors.New("endpoint not fully specified")
)

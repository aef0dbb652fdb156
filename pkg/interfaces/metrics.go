// Package interfaces 定义 natlink 公共接口
//
// 本文件定义流量统计接口。
package interfaces

// BandwidthReporter 记录收发字节数
//
// kind 为套接字类别（udp、tcp、rfcomm、ice）。
type BandwidthReporter interface {
	// LogSent 记录发送的字节数
	LogSent(kind string, n int64)

	// LogRecv 记录接收的字节数
	LogRecv(kind string, n int64)
}

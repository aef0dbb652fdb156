// Package interfaces 定义 natlink 公共接口
//
// 本文件定义套接字能力接口。
package interfaces

import "github.com/dep2p/go-natlink/pkg/types"

// ============================================================================
//                              DatagramConn 接口
// ============================================================================

// DatagramConn 非阻塞数据报套接字
//
// SendTo / ReceiveFrom 从不阻塞：没有数据时返回 socket.ErrWouldBlock，
// 套接字损坏后返回 socket.ErrBroken。
type DatagramConn interface {
	// SendTo 向指定端点发送一个数据报
	SendTo(ep types.Endpoint, p []byte) (int, error)

	// ReceiveFrom 读取一个数据报及其来源端点
	ReceiveFrom(p []byte) (int, types.Endpoint, error)

	// LocalEndpoint 返回本地绑定的端点
	LocalEndpoint() types.Endpoint

	// Close 关闭套接字
	Close() error
}

// ============================================================================
//                              StreamConn 接口
// ============================================================================

// StreamConn 面向连接的字节流套接字
type StreamConn interface {
	// Connect 发起连接（非阻塞）
	Connect(ep types.Endpoint) error

	// Send 发送字节，返回被接受的字节数
	Send(p []byte) (int, error)

	// Receive 读取可用字节
	Receive(p []byte) (int, error)

	// State 当前状态
	State() types.SocketState

	// RemoteEndpoint 对端端点
	RemoteEndpoint() types.Endpoint

	// Close 关闭套接字
	Close() error
}

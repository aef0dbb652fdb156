// Package socket 提供非阻塞套接字原语
//
// 包含四种套接字：
//   - DatagramSocket: UDP，可选广播
//   - StreamSocket: TCP，状态机 Idle → Connecting → Connected | Listening，终态 Broken
//   - ThreadedStreamSocket: 在 StreamSocket 外包一层后台工作协程与两条字节队列
//   - RadioSocket: RFCOMM 蓝牙流（仅 Linux）
//
// 所有套接字在创建时设置 10 MiB 的内核收发缓冲，并切换为非阻塞模式
// （RadioSocket 使用 50µs 的就绪检查代替）。
//
// # 返回约定
//
//   - (n, nil): 成功
//   - ErrWouldBlock: 暂无数据或暂不可写
//   - ErrBroken: 套接字已损坏，之后的所有调用都返回 ErrBroken
//
// 系统错误码在 classify 中统一翻译，平台差异隔离在 sys_*.go 中。
package socket

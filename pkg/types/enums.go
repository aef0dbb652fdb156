package types

// ============================================================================
//                              SocketState - 流式套接字状态
// ============================================================================

// SocketState 流式套接字状态
//
// Idle → Connecting → Connected 或 Idle → Listening；任何状态都可能进入 Broken，
// Broken 是终态。
type SocketState int

const (
	// SocketIdle 已创建，未连接也未监听
	SocketIdle SocketState = iota
	// SocketConnecting 非阻塞连接进行中
	SocketConnecting
	// SocketConnected 已连接
	SocketConnected
	// SocketListening 正在监听
	SocketListening
	// SocketBroken 不可恢复的错误，或对端已关闭
	SocketBroken
)

// String 返回套接字状态的字符串表示
func (s SocketState) String() string {
	switch s {
	case SocketIdle:
		return "idle"
	case SocketConnecting:
		return "connecting"
	case SocketConnected:
		return "connected"
	case SocketListening:
		return "listening"
	case SocketBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              SocketKind - 套接字类别
// ============================================================================

// SocketKind 套接字类别，用于流量统计分类
type SocketKind string

const (
	// KindDatagram UDP 数据报
	KindDatagram SocketKind = "udp"
	// KindStream TCP 流
	KindStream SocketKind = "tcp"
	// KindRadio RFCOMM 蓝牙流
	KindRadio SocketKind = "rfcomm"
	// KindICE ICE 会话
	KindICE SocketKind = "ice"
)

// ============================================================================
//                              SessionState - 连通性会话状态
// ============================================================================

// SessionState ICE 会话状态
type SessionState int

const (
	// SessionDisconnected 初始状态
	SessionDisconnected SessionState = iota
	// SessionGathering 正在收集本地候选
	SessionGathering
	// SessionConnecting 已设置远端描述，正在连通性检查
	SessionConnecting
	// SessionConnected 已找到可用候选对
	SessionConnected
	// SessionCompleted 检查全部完成
	SessionCompleted
	// SessionFailed 协商失败，会话不可复用
	SessionFailed
	// SessionClosed 已关闭
	SessionClosed
)

// String 返回会话状态的字符串表示
func (s SessionState) String() string {
	switch s {
	case SessionDisconnected:
		return "disconnected"
	case SessionGathering:
		return "gathering"
	case SessionConnecting:
		return "connecting"
	case SessionConnected:
		return "connected"
	case SessionCompleted:
		return "completed"
	case SessionFailed:
		return "failed"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              FieldKind - 协调记录字段类型
// ============================================================================

// FieldKind 字段写入存储时的表示方式
type FieldKind int

const (
	// FieldQuoted 作为文本写入
	FieldQuoted FieldKind = iota
	// FieldDirect 原样写入（数值等）
	FieldDirect
)

// String 返回字段类型的字符串表示
func (k FieldKind) String() string {
	switch k {
	case FieldQuoted:
		return "quoted"
	case FieldDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// ParseFieldKind 解析 "quoted" / "direct"
func ParseFieldKind(s string) (FieldKind, bool) {
	switch s {
	case "quoted", "text", "":
		return FieldQuoted, true
	case "direct", "number":
		return FieldDirect, true
	default:
		return FieldQuoted, false
	}
}

package nat

import "errors"

// Sentinel errors
var (
	// ErrSessionClosed 会话已关闭
	ErrSessionClosed = errors.New("nat: session closed")

	// ErrNoRemoteDescription 尚未设置远端描述
	ErrNoRemoteDescription = errors.New("nat: no remote description")

	// ErrNotConnected 尚未建立连通路径
	ErrNotConnected = errors.New("nat: not connected")

	// ErrInvalidDescription 描述无法解析
	ErrInvalidDescription = errors.New("nat: invalid description")

	// ErrMissingCredentials 描述中缺少 ICE 凭据
	ErrMissingCredentials = errors.New("nat: description has no ICE credentials")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("nat: invalid config")
)

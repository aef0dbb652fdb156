package netinfo

import "errors"

var (
	// ErrNoAddress 没有可用的 IPv4 网卡地址
	ErrNoAddress = errors.New("netinfo: no usable IPv4 address")

	// ErrNoServers 没有配置 STUN 服务器
	ErrNoServers = errors.New("netinfo: no STUN servers")

	// ErrSTUNTimeout 所有 STUN 服务器都没有响应
	ErrSTUNTimeout = errors.New("netinfo: STUN request timeout")
)

// STUNError STUN 查询错误
type STUNError struct {
	Server  string
	Message string
	Cause   error
}

func (e *STUNError) Error() string {
	msg := "netinfo: stun " + e.Server + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *STUNError) Unwrap() error {
	return e.Cause
}

package portmap

import (
	"errors"
	"fmt"
)

var (
	// ErrNoGateway 没有发现支持的网关
	ErrNoGateway = errors.New("portmap: no gateway found")

	// ErrDisabled 端口映射未启用
	ErrDisabled = errors.New("portmap: disabled")

	// ErrClosed 映射器已关闭
	ErrClosed = errors.New("portmap: mapper closed")

	// ErrInvalidPort 端口不合法
	ErrInvalidPort = errors.New("portmap: invalid port")
)

// MappingError 端口映射错误
type MappingError struct {
	Gateway  string
	Protocol Protocol
	Port     int
	Cause    error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("portmap: %s mapping %s port %d failed: %v", e.Gateway, e.Protocol, e.Port, e.Cause)
}

func (e *MappingError) Unwrap() error {
	return e.Cause
}

package socket

import (
	"errors"
	"fmt"
)

var (
	// ErrWouldBlock 暂无数据或暂不可写
	ErrWouldBlock = errors.New("socket: would block")

	// ErrBroken 套接字已损坏
	ErrBroken = errors.New("socket: broken")

	// ErrClosed 套接字已关闭
	ErrClosed = errors.New("socket: closed")

	// ErrNotListening 在未监听的套接字上调用 Accept
	ErrNotListening = errors.New("socket: not listening")

	// ErrUnsupported 当前平台不支持
	ErrUnsupported = errors.New("socket: unsupported on this platform")

	// ErrInvalidBDAddr 蓝牙地址格式无效
	ErrInvalidBDAddr = errors.New("socket: invalid bluetooth address")
)

// ErrorKind 系统错误的分类
type ErrorKind int

const (
	// Transient 暂时性错误，忽略即可
	Transient ErrorKind = iota
	// Fatal 致命错误，套接字进入 Broken
	Fatal
)

// String 返回分类名称
func (k ErrorKind) String() string {
	if k == Transient {
		return "transient"
	}
	return "fatal"
}

// errClass 决定哪些错误码按暂时性处理
type errClass int

const (
	classStream errClass = iota
	// classDatagram 额外把单个数据报的 ICMP 错误视为暂时性
	classDatagram
	// classAccept 额外把握手中途被对端放弃的连接视为暂时性
	classAccept
)

// OpError 套接字操作错误
type OpError struct {
	// Op 操作名称
	Op string
	// Kind 错误分类
	Kind ErrorKind
	// Err 底层错误
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("socket: %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrBroken) 对致命错误成立
func (e *OpError) Is(target error) bool {
	switch target {
	case ErrBroken:
		return e.Kind == Fatal
	case ErrWouldBlock:
		return e.Kind == Transient
	}
	return false
}

func opError(op string, kind ErrorKind, err error) error {
	return &OpError{Op: op, Kind: kind, Err: err}
}

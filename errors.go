package natlink

import "errors"

var (
	// ErrInvalidRole 未知的角色名
	ErrInvalidRole = errors.New("natlink: invalid role")

	// ErrAlreadyStarted 重复启动
	ErrAlreadyStarted = errors.New("natlink: already started")

	// ErrNotStarted 未启动
	ErrNotStarted = errors.New("natlink: not started")
)

//go:build !linux

package main

import "github.com/dep2p/go-natlink/internal/core/socket"

func newAdvertiser() (socket.ServiceAdvertiser, func(), error) {
	return nil, nil, socket.ErrUnsupported
}

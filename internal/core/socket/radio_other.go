//go:build !linux

package socket

import "time"

const radioSupported = false

func rfcommSocket() (int, error)                    { return -1, ErrUnsupported }
func rfcommListen(int, int) (uint8, error)          { return 0, ErrUnsupported }
func rfcommConnect(int, BDAddr, uint8) error        { return ErrUnsupported }
func rfcommAccept(int) (int, BDAddr, error)         { return -1, BDAddr{}, ErrUnsupported }
func waitReadable(int, time.Duration) (bool, error) { return false, ErrUnsupported }

//go:build linux

package socket

import (
	"time"

	"golang.org/x/sys/unix"
)

const radioSupported = true

func rfcommSocket() (int, error) {
	return sysSocket(unix.AF_BLUETOOTH, unix.SOCK_STREAM, unix.BTPROTO_RFCOMM)
}

// rfcommListen 绑定通道 0 并监听，由内核分配空闲通道
func rfcommListen(fd, backlog int) (uint8, error) {
	if err := unix.Bind(fd, &unix.SockaddrRFCOMM{}); err != nil {
		return 0, err
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return 0, err
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, err
	}
	if rc, ok := sa.(*unix.SockaddrRFCOMM); ok {
		return rc.Channel, nil
	}
	return 0, nil
}

func rfcommConnect(fd int, addr BDAddr, channel uint8) error {
	return unix.Connect(fd, &unix.SockaddrRFCOMM{Addr: addr.reversed(), Channel: channel})
}

func rfcommAccept(fd int) (int, BDAddr, error) {
	nfd, sa, err := unix.Accept(fd)
	if err != nil {
		return -1, BDAddr{}, err
	}
	unix.CloseOnExec(nfd)
	var peer BDAddr
	if rc, ok := sa.(*unix.SockaddrRFCOMM); ok {
		peer = BDAddr(rc.Addr)
		peer = BDAddr(peer.reversed())
	}
	return nfd, peer, nil
}

// waitReadable 在 timeout 内等待 fd 可读
func waitReadable(fd int, timeout time.Duration) (bool, error) {
	var set unix.FdSet
	set.Zero()
	set.Set(fd)
	tv := unix.NsecToTimeval(timeout.Nanoseconds())

	n, err := unix.Select(fd+1, &set, nil, nil, &tv)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, err
	}
	return n > 0 && set.IsSet(fd), nil
}

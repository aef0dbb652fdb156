//go:build linux || darwin || freebsd || netbsd || openbsd

package socket

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/dep2p/go-natlink/pkg/types"
)

// classify 把系统错误翻译为 Transient / Fatal
func classify(err error, class errClass) ErrorKind {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return Fatal
	}
	if errno == unix.EAGAIN || errno == unix.EWOULDBLOCK {
		return Transient
	}
	switch errno {
	case unix.EINPROGRESS, unix.EALREADY, unix.EISCONN, unix.ENOTCONN, unix.EINTR:
		return Transient
	}
	switch class {
	case classDatagram:
		switch errno {
		case unix.ECONNREFUSED, unix.EHOSTUNREACH, unix.ENETUNREACH, unix.EMSGSIZE:
			return Transient
		}
	case classAccept:
		if errno == unix.ECONNABORTED {
			return Transient
		}
	}
	return Fatal
}

func sysSocket(domain, typ, proto int) (int, error) {
	syscall.ForkLock.RLock()
	fd, err := unix.Socket(domain, typ, proto)
	if err == nil {
		unix.CloseOnExec(fd)
	}
	syscall.ForkLock.RUnlock()
	return fd, err
}

func sysDatagramSocket() (int, error) {
	return sysSocket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
}

func sysStreamSocket() (int, error) {
	fd, err := sysSocket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	// 快速重启监听端口
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	return fd, nil
}

func sysSetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

func sysSetBuffers(fd, size int) error {
	if size <= 0 {
		return nil
	}
	return errors.Join(
		unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, size),
		unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, size),
	)
}

func sysSetBroadcast(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
}

func sysBind(fd int, port uint16) error {
	return unix.Bind(fd, &unix.SockaddrInet4{Port: int(port)})
}

func sysListen(fd, backlog int) error {
	return unix.Listen(fd, backlog)
}

func sysConnect(fd int, ep types.Endpoint) error {
	return unix.Connect(fd, inet4(ep))
}

func sysAccept(fd int) (int, types.Endpoint, error) {
	syscall.ForkLock.RLock()
	nfd, sa, err := unix.Accept(fd)
	if err == nil {
		unix.CloseOnExec(nfd)
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return -1, types.Endpoint{}, err
	}
	return nfd, endpointOf(sa), nil
}

func sysSendTo(fd int, p []byte, ep types.Endpoint) (int, error) {
	if err := unix.Sendto(fd, p, 0, inet4(ep)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func sysRecvFrom(fd int, p []byte) (int, types.Endpoint, error) {
	n, sa, err := unix.Recvfrom(fd, p, 0)
	if err != nil {
		return 0, types.Endpoint{}, err
	}
	return n, endpointOf(sa), nil
}

func sysRead(fd int, p []byte) (int, error) {
	n, err := unix.Read(fd, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func sysWrite(fd int, p []byte) (int, error) {
	n, err := unix.Write(fd, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func sysLocalEndpoint(fd int) (types.Endpoint, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return types.Endpoint{}, err
	}
	return endpointOf(sa), nil
}

func sysPeerEndpoint(fd int) (types.Endpoint, error) {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return types.Endpoint{}, err
	}
	return endpointOf(sa), nil
}

// sysSocketError 读取并清除 SO_ERROR
func sysSocketError(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if v != 0 {
		return unix.Errno(v)
	}
	return nil
}

func sysClose(fd int) error {
	return unix.Close(fd)
}

func inet4(ep types.Endpoint) *unix.SockaddrInet4 {
	return &unix.SockaddrInet4{Port: int(ep.Port()), Addr: ep.IP()}
}

func endpointOf(sa unix.Sockaddr) types.Endpoint {
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		return types.NewEndpoint(sa4.Addr, uint16(sa4.Port))
	}
	return types.Endpoint{}
}

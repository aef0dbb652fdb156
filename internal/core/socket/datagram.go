package socket

import (
	"sync"

	"github.com/dep2p/go-natlink/internal/util/logger"
	"github.com/dep2p/go-natlink/pkg/interfaces"
	"github.com/dep2p/go-natlink/pkg/types"
)

var log = logger.Logger("socket")

// DatagramSocket 非阻塞 UDP 套接字
type DatagramSocket struct {
	cfg Config

	mu     sync.Mutex
	fd     int
	local  types.Endpoint
	broken bool
	closed bool
}

var _ interfaces.DatagramConn = (*DatagramSocket)(nil)

// NewDatagramSocket 创建 UDP 套接字
func NewDatagramSocket(opts ...Option) (*DatagramSocket, error) {
	cfg := buildConfig(opts)

	fd, err := sysDatagramSocket()
	if err != nil {
		return nil, opError("socket", Fatal, err)
	}
	if err := sysSetBuffers(fd, cfg.OSBufferSize); err != nil {
		log.Debug("设置缓冲区大小失败", "kind", types.KindDatagram, "error", err)
	}
	if err := sysSetNonblock(fd); err != nil {
		_ = sysClose(fd)
		return nil, opError("nonblock", Fatal, err)
	}
	if cfg.Broadcast {
		if err := sysSetBroadcast(fd); err != nil {
			_ = sysClose(fd)
			return nil, opError("broadcast", Fatal, err)
		}
	}
	return &DatagramSocket{cfg: cfg, fd: fd}, nil
}

// Bind 绑定到 0.0.0.0:port，port 为 0 时由系统分配
func (s *DatagramSocket) Bind(port uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return err
	}
	if err := sysBind(s.fd, port); err != nil {
		return s.fail("bind", err)
	}
	if ep, err := sysLocalEndpoint(s.fd); err == nil {
		s.local = ep
	}
	log.Debug("数据报套接字已绑定", "local", s.local)
	return nil
}

// SendTo 向 ep 发送一个数据报
//
// 目标端点必须完整指定。单个数据报的 ICMP 错误只丢弃该数据报。
func (s *DatagramSocket) SendTo(ep types.Endpoint, p []byte) (int, error) {
	if !ep.IsSpecified() {
		return 0, types.ErrEndpointUnspecified
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return 0, err
	}
	n, err := sysSendTo(s.fd, p, ep)
	if err != nil {
		if classify(err, classDatagram) == Transient {
			log.Debug("数据报发送被跳过", "to", ep, "error", err)
			return 0, ErrWouldBlock
		}
		return 0, s.fail("sendto", err)
	}
	s.cfg.sent(types.KindDatagram, n)
	return n, nil
}

// ReceiveFrom 读取一个数据报
func (s *DatagramSocket) ReceiveFrom(p []byte) (int, types.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return 0, types.Endpoint{}, err
	}
	n, from, err := sysRecvFrom(s.fd, p)
	if err != nil {
		if classify(err, classDatagram) == Transient {
			return 0, types.Endpoint{}, ErrWouldBlock
		}
		return 0, types.Endpoint{}, s.fail("recvfrom", err)
	}
	s.cfg.received(types.KindDatagram, n)
	return n, from, nil
}

// LocalEndpoint 返回绑定的本地端点
func (s *DatagramSocket) LocalEndpoint() types.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// IsValid 套接字是否可用
func (s *DatagramSocket) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usable() == nil
}

// Close 关闭套接字，重复调用无副作用
func (s *DatagramSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	err := sysClose(s.fd)
	s.fd = -1
	return err
}

func (s *DatagramSocket) usable() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.broken:
		return ErrBroken
	}
	return nil
}

func (s *DatagramSocket) fail(op string, err error) error {
	kind := classify(err, classDatagram)
	if kind == Fatal {
		s.broken = true
		log.Warn("数据报套接字已损坏", "op", op, "local", s.local, "error", err)
	}
	return opError(op, kind, err)
}

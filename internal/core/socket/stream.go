package socket

import (
	"sync"

	"github.com/dep2p/go-natlink/pkg/interfaces"
	"github.com/dep2p/go-natlink/pkg/types"
)

// StreamSocket 非阻塞 TCP 套接字
type StreamSocket struct {
	cfg Config

	mu         sync.Mutex
	fd         int
	state      types.SocketState
	remote     types.Endpoint
	listenPort uint16
	closed     bool
}

var _ interfaces.StreamConn = (*StreamSocket)(nil)

// NewStreamSocket 创建 TCP 套接字
func NewStreamSocket(opts ...Option) (*StreamSocket, error) {
	cfg := buildConfig(opts)

	fd, err := sysStreamSocket()
	if err != nil {
		return nil, opError("socket", Fatal, err)
	}
	if err := prepareStream(fd, cfg); err != nil {
		_ = sysClose(fd)
		return nil, err
	}
	return &StreamSocket{cfg: cfg, fd: fd, state: types.SocketIdle}, nil
}

func prepareStream(fd int, cfg Config) error {
	if err := sysSetBuffers(fd, cfg.OSBufferSize); err != nil {
		log.Debug("设置缓冲区大小失败", "kind", types.KindStream, "error", err)
	}
	if err := sysSetNonblock(fd); err != nil {
		return opError("nonblock", Fatal, err)
	}
	return nil
}

// Connect 发起非阻塞连接
//
// 连接进行中时返回 nil，状态为 Connecting；State 会在连接完成后推进。
func (s *StreamSocket) Connect(ep types.Endpoint) error {
	if !ep.IsSpecified() {
		return types.ErrEndpointUnspecified
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return err
	}
	s.remote = ep
	err := sysConnect(s.fd, ep)
	switch {
	case err == nil:
		s.state = types.SocketConnected
	case classify(err, classStream) == Transient:
		s.state = types.SocketConnecting
	default:
		return s.fail("connect", err)
	}
	log.Debug("流套接字发起连接", "remote", ep, "state", s.state)
	return nil
}

// Listen 绑定 0.0.0.0:port 并开始监听
func (s *StreamSocket) Listen(port uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return err
	}
	if err := sysBind(s.fd, port); err != nil {
		return s.fail("bind", err)
	}
	if err := sysListen(s.fd, s.cfg.ListenBacklog); err != nil {
		return s.fail("listen", err)
	}
	s.listenPort = port
	if ep, err := sysLocalEndpoint(s.fd); err == nil {
		s.listenPort = ep.Port()
	}
	s.state = types.SocketListening
	log.Debug("流套接字开始监听", "port", s.listenPort)
	return nil
}

// Accept 取出一个已完成的连接
//
// 没有待处理连接时返回 (nil, nil)。新套接字继承配置并记录对端端点。
func (s *StreamSocket) Accept() (*StreamSocket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return nil, err
	}
	if s.state != types.SocketListening {
		return nil, ErrNotListening
	}
	nfd, peer, err := sysAccept(s.fd)
	if err != nil {
		if classify(err, classAccept) == Transient {
			return nil, nil
		}
		return nil, s.fail("accept", err)
	}
	if err := prepareStream(nfd, s.cfg); err != nil {
		_ = sysClose(nfd)
		log.Warn("配置已接受的套接字失败", "remote", peer, "error", err)
		return nil, nil
	}
	log.Debug("流套接字接受连接", "remote", peer, "port", s.listenPort)
	return &StreamSocket{cfg: s.cfg, fd: nfd, state: types.SocketConnected, remote: peer}, nil
}

// Send 写入字节，返回内核接受的字节数
func (s *StreamSocket) Send(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := sysWrite(s.fd, p)
	if err != nil {
		if classify(err, classStream) == Transient {
			return 0, ErrWouldBlock
		}
		return 0, s.fail("write", err)
	}
	s.cfg.sent(types.KindStream, n)
	return n, nil
}

// Receive 读取可用字节
//
// 对端关闭（读到 0 字节）时套接字进入 Broken。
func (s *StreamSocket) Receive(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := sysRead(s.fd, p)
	if err != nil {
		if classify(err, classStream) == Transient {
			return 0, ErrWouldBlock
		}
		return 0, s.fail("read", err)
	}
	if n == 0 {
		s.state = types.SocketBroken
		log.Debug("对端关闭流连接", "remote", s.remote)
		return 0, ErrBroken
	}
	s.cfg.received(types.KindStream, n)
	return n, nil
}

// State 返回当前状态
//
// Connecting 的套接字在此推进：SO_ERROR 非零进入 Broken，对端地址可解析进入 Connected。
func (s *StreamSocket) State() types.SocketState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == types.SocketConnecting && !s.closed {
		if err := sysSocketError(s.fd); err != nil {
			if classify(err, classStream) == Fatal {
				_ = s.fail("connect", err)
			}
			return s.state
		}
		if _, err := sysPeerEndpoint(s.fd); err == nil {
			s.state = types.SocketConnected
			log.Debug("流套接字已连接", "remote", s.remote)
		}
	}
	return s.state
}

// RemoteEndpoint 对端端点
func (s *StreamSocket) RemoteEndpoint() types.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// LocalEndpoint 本地端点
func (s *StreamSocket) LocalEndpoint() types.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.Endpoint{}
	}
	ep, _ := sysLocalEndpoint(s.fd)
	return ep
}

// ListenPort 监听端口，未监听时为 0
func (s *StreamSocket) ListenPort() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenPort
}

// IsValid 套接字是否可用
func (s *StreamSocket) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usable() == nil
}

// Close 关闭套接字，重复调用无副作用
func (s *StreamSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.state = types.SocketBroken
	err := sysClose(s.fd)
	s.fd = -1
	return err
}

func (s *StreamSocket) usable() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.state == types.SocketBroken:
		return ErrBroken
	}
	return nil
}

func (s *StreamSocket) fail(op string, err error) error {
	kind := classify(err, classStream)
	if kind == Fatal {
		s.state = types.SocketBroken
		log.Warn("流套接字已损坏", "op", op, "remote", s.remote, "error", err)
	}
	return opError(op, kind, err)
}

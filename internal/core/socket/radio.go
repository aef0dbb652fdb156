package socket

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/dep2p/go-natlink/pkg/types"
)

// ============================================================================
//                              服务记录
// ============================================================================

// DefaultServiceUUID 默认的蓝牙服务类 UUID
const DefaultServiceUUID = "263beec5-a7fe-443a-a9ee-9bdfc5fc17a3"

// ServiceRecord 可被发现的服务记录
type ServiceRecord struct {
	UUID    string
	Name    string
	Comment string
	// Channel RFCOMM 通道，0 表示由系统分配
	Channel uint8
}

// DefaultServiceRecord 返回默认服务记录
func DefaultServiceRecord() ServiceRecord {
	return ServiceRecord{
		UUID:    DefaultServiceUUID,
		Name:    "natlink radio",
		Comment: "natlink RFCOMM service",
	}
}

// ServiceAdvertiser 发布与撤销服务记录
type ServiceAdvertiser interface {
	Advertise(rec ServiceRecord) error
	Withdraw() error
}

// ConnectionSource 由发布者自己持有监听套接字时实现
//
// 此时 RadioSocket 不再自行监听，Accept 从 Connections 取已连接的 fd。
type ConnectionSource interface {
	Connections() <-chan int
}

// ============================================================================
//                              蓝牙地址
// ============================================================================

// BDAddr 蓝牙设备地址，按显示顺序存放
type BDAddr [6]byte

// ParseBDAddr 解析 "XX:XX:XX:XX:XX:XX"
func ParseBDAddr(s string) (BDAddr, error) {
	var addr BDAddr
	parts := strings.Split(s, ":")
	if len(parts) != len(addr) {
		return addr, fmt.Errorf("%w: %q", ErrInvalidBDAddr, s)
	}
	for i, p := range parts {
		if len(p) != 2 {
			return addr, fmt.Errorf("%w: %q", ErrInvalidBDAddr, s)
		}
		if _, err := hex.Decode(addr[i:i+1], []byte(p)); err != nil {
			return addr, fmt.Errorf("%w: %q", ErrInvalidBDAddr, s)
		}
	}
	return addr, nil
}

// String 返回 "XX:XX:XX:XX:XX:XX"
func (a BDAddr) String() string {
	parts := make([]string, len(a))
	for i, b := range a {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

// reversed 内核 bdaddr_t 为小端序
func (a BDAddr) reversed() [6]byte {
	var out [6]byte
	for i := range a {
		out[i] = a[len(a)-1-i]
	}
	return out
}

// ============================================================================
//                              RadioSocket
// ============================================================================

// RadioSocket RFCOMM 蓝牙流套接字
//
// 不使用非阻塞模式：Accept 与 Receive 先做 ReadinessTimeout（50µs）的就绪检查，
// 未就绪时立即返回。Connect 是阻塞的。
type RadioSocket struct {
	cfg Config

	mu         sync.Mutex
	fd         int
	state      types.SocketState
	remote     BDAddr
	channel    uint8
	conns      <-chan int
	advertised bool
	closed     bool
}

// NewRadioSocket 创建 RFCOMM 套接字
//
// 底层 fd 在 Listen / Connect 时才打开。非 Linux 平台返回 ErrUnsupported。
func NewRadioSocket(opts ...Option) (*RadioSocket, error) {
	if !radioSupported {
		return nil, ErrUnsupported
	}
	return &RadioSocket{cfg: buildConfig(opts), fd: -1, state: types.SocketIdle}, nil
}

func newConnectedRadio(cfg Config, fd int, remote BDAddr) *RadioSocket {
	return &RadioSocket{cfg: cfg, fd: fd, state: types.SocketConnected, remote: remote}
}

// Listen 开始监听并发布服务记录
//
// 发布失败只记录日志，监听本身仍然有效。
func (r *RadioSocket) Listen() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.usable(); err != nil {
		return err
	}
	rec := r.cfg.Service

	if src, ok := r.cfg.Advertiser.(ConnectionSource); ok {
		if err := r.cfg.Advertiser.Advertise(rec); err != nil {
			return r.failLocked("advertise", err)
		}
		r.advertised = true
		r.conns = src.Connections()
		r.channel = rec.Channel
		r.state = types.SocketListening
		log.Info("无线服务记录已注册", "uuid", rec.UUID, "channel", rec.Channel)
		return nil
	}

	fd, err := rfcommSocket()
	if err != nil {
		return r.failLocked("socket", err)
	}
	r.fd = fd
	ch, err := rfcommListen(fd, r.cfg.ListenBacklog)
	if err != nil {
		return r.failLocked("listen", err)
	}
	r.channel = ch
	r.state = types.SocketListening

	if r.cfg.Advertiser != nil {
		rec.Channel = ch
		if err := r.cfg.Advertiser.Advertise(rec); err != nil {
			log.Warn("注册无线服务记录失败", "uuid", rec.UUID, "error", err)
		} else {
			r.advertised = true
		}
	}
	log.Info("无线套接字开始监听", "channel", ch)
	return nil
}

// Accept 取出一个连接，没有待处理连接时返回 (nil, nil)
func (r *RadioSocket) Accept() (*RadioSocket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.usable(); err != nil {
		return nil, err
	}
	if r.state != types.SocketListening {
		return nil, ErrNotListening
	}

	if r.conns != nil {
		select {
		case fd, ok := <-r.conns:
			if !ok {
				return nil, r.failLocked("accept", ErrClosed)
			}
			log.Debug("无线连接已移交", "fd", fd)
			return newConnectedRadio(r.cfg, fd, BDAddr{}), nil
		default:
			return nil, nil
		}
	}

	ready, err := waitReadable(r.fd, r.cfg.ReadinessTimeout)
	if err != nil {
		return nil, r.failLocked("select", err)
	}
	if !ready {
		return nil, nil
	}
	nfd, peer, err := rfcommAccept(r.fd)
	if err != nil {
		if classify(err, classAccept) == Transient {
			return nil, nil
		}
		return nil, r.failLocked("accept", err)
	}
	log.Debug("无线套接字接受连接", "remote", peer)
	return newConnectedRadio(r.cfg, nfd, peer), nil
}

// Connect 阻塞连接到 "XX:XX:XX:XX:XX:XX" 的 RadioChannel 通道
func (r *RadioSocket) Connect(addr string) error {
	bd, err := ParseBDAddr(addr)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.usable(); err != nil {
		return err
	}
	if r.fd < 0 {
		fd, err := rfcommSocket()
		if err != nil {
			return r.failLocked("socket", err)
		}
		r.fd = fd
	}
	r.remote = bd
	r.channel = r.cfg.RadioChannel
	if err := rfcommConnect(r.fd, bd, r.channel); err != nil {
		return r.failLocked("connect", err)
	}
	r.state = types.SocketConnected
	log.Info("无线套接字已连接", "remote", bd, "channel", r.channel)
	return nil
}

// Send 写入字节
func (r *RadioSocket) Send(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.usable(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := sysWrite(r.fd, p)
	if err != nil {
		if classify(err, classStream) == Transient {
			return 0, ErrWouldBlock
		}
		return 0, r.failLocked("write", err)
	}
	r.cfg.sent(types.KindRadio, n)
	return n, nil
}

// Receive 读取可用字节，未就绪时返回 ErrWouldBlock
func (r *RadioSocket) Receive(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.usable(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	ready, err := waitReadable(r.fd, r.cfg.ReadinessTimeout)
	if err != nil {
		return 0, r.failLocked("select", err)
	}
	if !ready {
		return 0, ErrWouldBlock
	}
	n, err := sysRead(r.fd, p)
	if err != nil {
		if classify(err, classStream) == Transient {
			return 0, ErrWouldBlock
		}
		return 0, r.failLocked("read", err)
	}
	if n == 0 {
		log.Debug("对端关闭无线连接", "remote", r.remote)
		r.breakLocked()
		return 0, ErrBroken
	}
	r.cfg.received(types.KindRadio, n)
	return n, nil
}

// IsBroken 是否已损坏
func (r *RadioSocket) IsBroken() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == types.SocketBroken
}

// State 当前状态
func (r *RadioSocket) State() types.SocketState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// RemoteAddr 对端地址，BlueZ 转交的连接为零值
func (r *RadioSocket) RemoteAddr() BDAddr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remote
}

// Channel RFCOMM 通道
func (r *RadioSocket) Channel() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel
}

// Close 撤销服务记录并关闭套接字
func (r *RadioSocket) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	var err error
	if r.advertised {
		err = multierr.Append(err, r.cfg.Advertiser.Withdraw())
		r.advertised = false
	}
	if r.fd >= 0 {
		err = multierr.Append(err, sysClose(r.fd))
		r.fd = -1
	}
	r.closed = true
	r.state = types.SocketBroken
	return err
}

func (r *RadioSocket) usable() error {
	switch {
	case r.closed:
		return ErrClosed
	case r.state == types.SocketBroken:
		return ErrBroken
	}
	return nil
}

// failLocked 致命错误时关闭 fd 并进入 Broken
func (r *RadioSocket) failLocked(op string, err error) error {
	log.Warn("无线套接字已损坏", "op", op, "remote", r.remote, "error", err)
	r.breakLocked()
	return opError(op, Fatal, err)
}

func (r *RadioSocket) breakLocked() {
	if r.fd >= 0 {
		_ = sysClose(r.fd)
		r.fd = -1
	}
	r.state = types.SocketBroken
}

package coord

import (
	"sync"

	"github.com/dep2p/go-natlink/internal/core/socket"
	"github.com/dep2p/go-natlink/pkg/types"
)

// memNet 进程内数据报网络，按端点投递
type memNet struct {
	mu    sync.Mutex
	conns map[types.Endpoint]*memConn
}

func newMemNet() *memNet {
	return &memNet{conns: make(map[types.Endpoint]*memConn)}
}

type datagram struct {
	from types.Endpoint
	data []byte
}

// memConn 实现 interfaces.DatagramConn
type memConn struct {
	net   *memNet
	local types.Endpoint

	mu     sync.Mutex
	queue  []datagram
	closed bool

	// SendToFunc 非空时替代默认投递
	SendToFunc func(ep types.Endpoint, p []byte) (int, error)
}

func (n *memNet) listen(ep types.Endpoint) *memConn {
	c := &memConn{net: n, local: ep}
	n.mu.Lock()
	n.conns[ep] = c
	n.mu.Unlock()
	return c
}

func (c *memConn) SendTo(ep types.Endpoint, p []byte) (int, error) {
	if c.SendToFunc != nil {
		return c.SendToFunc(ep, p)
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, socket.ErrClosed
	}

	c.net.mu.Lock()
	dst := c.net.conns[ep]
	c.net.mu.Unlock()
	if dst != nil {
		dst.deliver(c.local, p)
	}
	return len(p), nil
}

func (c *memConn) deliver(from types.Endpoint, p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.queue = append(c.queue, datagram{from: from, data: append([]byte(nil), p...)})
}

func (c *memConn) ReceiveFrom(p []byte) (int, types.Endpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, types.Endpoint{}, socket.ErrClosed
	}
	if len(c.queue) == 0 {
		return 0, types.Endpoint{}, socket.ErrWouldBlock
	}
	d := c.queue[0]
	c.queue = c.queue[1:]
	return copy(p, d.data), d.from, nil
}

// pending 返回待收数据报数量
func (c *memConn) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// pop 取出一个待收数据报
func (c *memConn) pop() (datagram, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return datagram{}, false
	}
	d := c.queue[0]
	c.queue = c.queue[1:]
	return d, true
}

func (c *memConn) LocalEndpoint() types.Endpoint { return c.local }

func (c *memConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func ep(last byte, port uint16) types.Endpoint {
	return types.NewEndpoint([4]byte{10, 0, 0, last}, port)
}

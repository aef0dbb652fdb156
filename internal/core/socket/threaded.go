package socket

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-natlink/pkg/interfaces"
	"github.com/dep2p/go-natlink/pkg/types"
)

// ThreadedStreamSocket 带后台工作协程的流式套接字
//
// Send 只把数据追加到发送队列；Receive 只从接收队列取数据。
// 工作协程每个周期做一次读和一次写，两条队列各有一把锁，
// 锁只在复制数据时持有，不跨越系统调用。
type ThreadedStreamSocket struct {
	inner *StreamSocket
	cfg   Config

	sendMu  sync.Mutex
	sendBuf bytes.Buffer

	recvMu  sync.Mutex
	recvBuf bytes.Buffer

	broken atomic.Bool

	lifeMu  sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

var _ interfaces.StreamConn = (*ThreadedStreamSocket)(nil)

// NewThreadedStreamSocket 创建线程化流式套接字
func NewThreadedStreamSocket(opts ...Option) (*ThreadedStreamSocket, error) {
	inner, err := NewStreamSocket(opts...)
	if err != nil {
		return nil, err
	}
	return wrapStream(inner), nil
}

func wrapStream(inner *StreamSocket) *ThreadedStreamSocket {
	return &ThreadedStreamSocket{inner: inner, cfg: inner.cfg}
}

// Connect 发起连接并启动工作协程
func (t *ThreadedStreamSocket) Connect(ep types.Endpoint) error {
	if err := t.inner.Connect(ep); err != nil {
		if errors.Is(err, ErrBroken) {
			t.broken.Store(true)
		}
		return err
	}
	t.Start()
	return nil
}

// Listen 开始监听
func (t *ThreadedStreamSocket) Listen(port uint16) error {
	return t.inner.Listen(port)
}

// Accept 取出一个连接，返回的套接字已启动工作协程
//
// 没有待处理连接时返回 (nil, nil)。
func (t *ThreadedStreamSocket) Accept() (*ThreadedStreamSocket, error) {
	ns, err := t.inner.Accept()
	if err != nil || ns == nil {
		return nil, err
	}
	ts := wrapStream(ns)
	ts.Start()
	return ts, nil
}

// Send 追加到发送队列，立即返回 len(p)
func (t *ThreadedStreamSocket) Send(p []byte) (int, error) {
	if t.broken.Load() {
		return 0, ErrBroken
	}
	t.sendMu.Lock()
	t.sendBuf.Write(p)
	t.sendMu.Unlock()
	return len(p), nil
}

// Receive 从接收队列取出至多 len(p) 字节
func (t *ThreadedStreamSocket) Receive(p []byte) (int, error) {
	if t.broken.Load() {
		return 0, ErrBroken
	}
	t.recvMu.Lock()
	defer t.recvMu.Unlock()
	if t.recvBuf.Len() == 0 {
		return 0, ErrWouldBlock
	}
	n, _ := t.recvBuf.Read(p)
	return n, nil
}

// State 返回底层套接字状态
func (t *ThreadedStreamSocket) State() types.SocketState {
	if t.broken.Load() {
		return types.SocketBroken
	}
	return t.inner.State()
}

// RemoteEndpoint 对端端点
func (t *ThreadedStreamSocket) RemoteEndpoint() types.Endpoint {
	return t.inner.RemoteEndpoint()
}

// ListenPort 监听端口
func (t *ThreadedStreamSocket) ListenPort() uint16 {
	return t.inner.ListenPort()
}

// IsBroken 是否已损坏
func (t *ThreadedStreamSocket) IsBroken() bool {
	return t.broken.Load()
}

// Pending 返回两条队列当前的字节数
func (t *ThreadedStreamSocket) Pending() (outbound, inbound int) {
	t.sendMu.Lock()
	outbound = t.sendBuf.Len()
	t.sendMu.Unlock()
	t.recvMu.Lock()
	inbound = t.recvBuf.Len()
	t.recvMu.Unlock()
	return outbound, inbound
}

// Report 以 debug 级别输出队列大小
func (t *ThreadedStreamSocket) Report() {
	out, in := t.Pending()
	log.Debug("线程化套接字队列状态",
		"remote", t.inner.RemoteEndpoint(),
		"outbound", out,
		"inbound", in,
		"broken", t.broken.Load())
}

// Start 启动工作协程，已启动时无操作
func (t *ThreadedStreamSocket) Start() {
	t.lifeMu.Lock()
	defer t.lifeMu.Unlock()

	if t.running {
		return
	}
	t.running = true
	t.stop = make(chan struct{})
	t.wg.Add(1)
	go t.run(t.stop)
}

// Stop 停止并等待工作协程退出，未启动时无操作
func (t *ThreadedStreamSocket) Stop() {
	t.lifeMu.Lock()
	if !t.running {
		t.lifeMu.Unlock()
		return
	}
	t.running = false
	close(t.stop)
	t.lifeMu.Unlock()

	t.wg.Wait()
}

// Close 停止工作协程后关闭底层套接字
func (t *ThreadedStreamSocket) Close() error {
	t.Stop()
	t.broken.Store(true)
	return t.inner.Close()
}

func (t *ThreadedStreamSocket) run(stop <-chan struct{}) {
	defer t.wg.Done()

	scratch := make([]byte, t.cfg.ScratchSize)
	chunk := make([]byte, t.cfg.WriteChunkSize)
	ticker := time.NewTicker(t.cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		if !t.pumpRead(scratch) || !t.pumpWrite(chunk) {
			t.broken.Store(true)
			log.Debug("线程化套接字工作协程退出", "remote", t.inner.RemoteEndpoint())
			return
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// pumpRead 读一次并追加到接收队列，套接字损坏时返回 false
func (t *ThreadedStreamSocket) pumpRead(scratch []byte) bool {
	n, err := t.inner.Receive(scratch)
	if err != nil {
		return errors.Is(err, ErrWouldBlock)
	}
	t.recvMu.Lock()
	t.recvBuf.Write(scratch[:n])
	t.recvMu.Unlock()
	return true
}

// pumpWrite 从发送队列头部写出至多一个块，只移除被接受的字节
func (t *ThreadedStreamSocket) pumpWrite(chunk []byte) bool {
	t.sendMu.Lock()
	n := copy(chunk, t.sendBuf.Bytes())
	t.sendMu.Unlock()
	if n == 0 {
		return true
	}

	written, err := t.inner.Send(chunk[:n])
	if err != nil {
		return errors.Is(err, ErrWouldBlock)
	}
	t.sendMu.Lock()
	t.sendBuf.Next(written)
	t.sendMu.Unlock()
	return true
}

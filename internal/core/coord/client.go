package coord

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-natlink/internal/core/socket"
	"github.com/dep2p/go-natlink/pkg/interfaces"
	"github.com/dep2p/go-natlink/pkg/types"
)

// Client 协调客户端
type Client struct {
	cfg  ClientConfig
	conn interfaces.DatagramConn
	clk  clock.Clock

	mu         sync.Mutex
	values     Record
	onResponse ResponseHandler
	pushed     bool
	lastSend   time.Time
	lastAlive  time.Time
	serverTime string
	buf        []byte
	closed     bool

	stats counters
}

// NewClient 创建协调客户端
//
// 未指定 WithConn 时绑定一个临时端口接收主机回复。
func NewClient(cfg ClientConfig, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	conn := o.conn
	if conn == nil {
		sock, err := socket.NewDatagramSocket(socket.WithBandwidth(o.reporter))
		if err != nil {
			return nil, err
		}
		if err := sock.Bind(0); err != nil {
			_ = sock.Close()
			return nil, err
		}
		conn = sock
	}

	log.Info("协调客户端已创建", "host", cfg.HostEndpoint, "local", conn.LocalEndpoint())
	return &Client{
		cfg:    cfg,
		conn:   conn,
		clk:    o.clock,
		values: make(Record),
		buf:    make([]byte, readBufferSize),
	}, nil
}

// SetKey 设置一个推送字段，下一次推送生效
func (c *Client) SetKey(key, value string) error {
	if IsReservedKey(key) {
		return ErrReservedKey
	}
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
	return nil
}

// LocalValue 返回本地推送字段的当前值
func (c *Client) LocalValue(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// Values 返回本地推送字段副本
func (c *Client) Values() Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values.Clone()
}

// SetResponseHandler 设置查询结果回调
func (c *Client) SetResponseHandler(fn ResponseHandler) {
	c.mu.Lock()
	c.onResponse = fn
	c.mu.Unlock()
}

// Update 处理至多一个主机回复，并在到期时推送完整键值集合
//
// 第一次调用立即推送。只有套接字损坏或已关闭时返回错误。
func (c *Client) Update() error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	rows, err := c.receiveLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}

	now := c.clk.Now()
	if !c.pushed || now.Sub(c.lastSend) >= c.cfg.SendInterval {
		c.pushLocked(now)
	}

	fn := c.onResponse
	c.mu.Unlock()

	if len(rows) > 0 && fn != nil {
		fn(rows)
	}
	return nil
}

func (c *Client) receiveLocked() ([]types.Row, error) {
	n, from, err := c.conn.ReceiveFrom(c.buf)
	if err != nil {
		if errors.Is(err, socket.ErrWouldBlock) {
			return nil, nil
		}
		return nil, err
	}
	c.stats.received.Add(1)

	if n > MaxPayloadSize {
		c.stats.dropped.Add(1)
		log.Debug("丢弃超长数据报", "from", from, "size", n)
		return nil, nil
	}
	r, err := DecodeReply(c.buf[:n])
	if err != nil {
		c.stats.dropped.Add(1)
		log.Debug("丢弃无法解析的回复", "from", from, "error", err)
		return nil, nil
	}
	if r.ServerTime != "" {
		c.lastAlive = c.clk.Now()
		c.serverTime = r.ServerTime
	}
	return r.Result, nil
}

func (c *Client) pushLocked(now time.Time) {
	c.pushed = true
	c.lastSend = now

	b, err := EncodeRecord(c.values)
	if err != nil {
		c.stats.dropped.Add(1)
		log.Warn("推送记录无法编码", "error", err)
		return
	}
	if _, err := c.conn.SendTo(c.cfg.HostEndpoint, b); err != nil {
		c.stats.dropped.Add(1)
		log.Debug("推送发送失败", "host", c.cfg.HostEndpoint, "error", err)
		return
	}
	c.stats.sent.Add(1)
}

// SQLRequest 立即向主机发送查询，结果由回调接收
func (c *Client) SQLRequest(query string) error {
	b, err := EncodeQuery(query)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if _, err := c.conn.SendTo(c.cfg.HostEndpoint, b); err != nil {
		c.stats.dropped.Add(1)
		return err
	}
	c.stats.sent.Add(1)
	return nil
}

// IsConnected 最近一次 SERVERTIME 在存活窗口内（含边界）
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.lastAlive.IsZero() && c.clk.Now().Sub(c.lastAlive) <= c.cfg.LivenessWindow
}

// ServerTime 返回最近一次收到的主机时间
func (c *Client) ServerTime() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverTime
}

// HostEndpoint 返回主机端点
func (c *Client) HostEndpoint() types.Endpoint {
	return c.cfg.HostEndpoint
}

// LocalEndpoint 返回本地端点
func (c *Client) LocalEndpoint() types.Endpoint {
	return c.conn.LocalEndpoint()
}

// Stats 返回计数快照
func (c *Client) Stats() Stats {
	return c.stats.snapshot()
}

// Close 关闭套接字
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

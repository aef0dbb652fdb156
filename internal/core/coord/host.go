package coord

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-natlink/internal/core/socket"
	"github.com/dep2p/go-natlink/internal/util/logger"
	"github.com/dep2p/go-natlink/pkg/interfaces"
	"github.com/dep2p/go-natlink/pkg/types"
)

var log = logger.Logger("coord")

// ResponseHandler 查询结果回调
type ResponseHandler func(rows []types.Row)

// Host 协调主机
//
// 所有存储操作都在 Update / SQLRequest 中持锁同步完成，存储不会被并发访问。
type Host struct {
	cfg    HostConfig
	schema *Schema
	conn   interfaces.DatagramConn
	store  interfaces.Store
	clk    clock.Clock

	mu         sync.Mutex
	onResponse ResponseHandler
	lastRecv   time.Time
	buf        []byte
	closed     bool

	stats counters
}

// NewHost 创建协调主机
//
// 打开存储并建表，然后在 cfg.ListenPort 上绑定 UDP 套接字（WithConn 时跳过绑定）。
// store 必须尚未 Connect；Close 时一并关闭。
func NewHost(cfg HostConfig, store interfaces.Store, opts ...Option) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	schema, err := NewSchema(cfg.Schema)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	if err := store.Connect(cfg.StorePath); err != nil {
		return nil, fmt.Errorf("coord: connect store: %w", err)
	}
	if err := store.GenerateTable(cfg.Table, schema.Fields()); err != nil {
		return nil, multierr.Append(fmt.Errorf("coord: generate table: %w", err), store.Close())
	}

	conn := o.conn
	if conn == nil {
		sock, err := socket.NewDatagramSocket(socket.WithBandwidth(o.reporter))
		if err != nil {
			return nil, multierr.Append(err, store.Close())
		}
		if err := sock.Bind(cfg.ListenPort); err != nil {
			return nil, multierr.Combine(err, sock.Close(), store.Close())
		}
		conn = sock
	}

	h := &Host{
		cfg:    cfg,
		schema: schema,
		conn:   conn,
		store:  store,
		clk:    o.clock,
		buf:    make([]byte, readBufferSize),
	}
	log.Info("协调主机已启动",
		"local", conn.LocalEndpoint(),
		"table", cfg.Table,
		"fields", len(cfg.Schema))
	return h, nil
}

// SetResponseHandler 设置本地查询的结果回调
func (h *Host) SetResponseHandler(fn ResponseHandler) {
	h.mu.Lock()
	h.onResponse = fn
	h.mu.Unlock()
}

// Update 处理至多一个待收数据报
//
// 没有数据时立即返回 nil；只有套接字损坏或已关闭时返回错误。
func (h *Host) Update() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}

	n, from, err := h.conn.ReceiveFrom(h.buf)
	if err != nil {
		if errors.Is(err, socket.ErrWouldBlock) {
			return nil
		}
		return err
	}
	h.stats.received.Add(1)

	if n > MaxPayloadSize {
		h.stats.dropped.Add(1)
		log.Debug("丢弃超长数据报", "from", from, "size", n)
		return nil
	}

	req, err := decodeRequest(h.buf[:n])
	if err != nil {
		h.stats.dropped.Add(1)
		log.Debug("丢弃无法解析的数据报", "from", from, "error", err)
		return nil
	}
	h.lastRecv = h.clk.Now()

	var rows []types.Row
	if req.isQuery {
		rows, err = h.store.Query(req.query, nil)
		if err != nil {
			log.Warn("远端查询被拒绝或失败", "from", from, "error", err)
			rows = nil
		}
	} else {
		h.upsert(from, req.record)
	}

	h.reply(from, rows)
	return nil
}

func (h *Host) upsert(from types.Endpoint, rec Record) {
	u, err := h.schema.BuildUpsert(h.cfg.Table, rec)
	if err != nil {
		log.Debug("推送记录没有已知字段", "from", from, "fields", len(rec))
		return
	}
	if unknown := h.schema.Unknown(rec); len(unknown) > 0 {
		log.Debug("忽略未知字段", "from", from, "fields", unknown)
	}
	if _, err := h.store.Exec(u.SQL(), u.Args...); err != nil {
		log.Warn("写入客户端记录失败", "from", from, "sql", u.Literal(), "error", err)
		return
	}
	log.Debug("写入客户端记录", "from", from, "sql", u.Literal())
}

func (h *Host) reply(to types.Endpoint, rows []types.Row) {
	b, truncated, err := encodeReply(h.clk.Now(), rows)
	if err != nil {
		h.stats.dropped.Add(1)
		log.Warn("编码回复失败", "to", to, "error", err)
		return
	}
	if truncated > 0 {
		h.stats.truncated.Add(uint64(truncated))
		log.Warn("查询结果超出单个数据报，已截断", "to", to, "rows", len(rows), "dropped", truncated)
	}
	if _, err := h.conn.SendTo(to, b); err != nil {
		h.stats.dropped.Add(1)
		log.Debug("回复发送失败", "to", to, "error", err)
		return
	}
	h.stats.sent.Add(1)
}

// SQLRequest 直接在本地存储上执行查询，并以结果调用回调
//
// 不产生任何网络流量；结果为空时回调收到空切片。
func (h *Host) SQLRequest(query string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	rows, err := h.store.RunSQL(query, nil)
	fn := h.onResponse
	h.mu.Unlock()

	if err != nil {
		return fmt.Errorf("coord: query: %w", err)
	}
	if rows == nil {
		rows = []types.Row{}
	}
	if fn != nil {
		fn(rows)
	}
	return nil
}

// IsConnected 在存活窗口内收到过客户端数据报
func (h *Host) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.lastRecv.IsZero() && h.clk.Now().Sub(h.lastRecv) <= h.cfg.LivenessWindow
}

// LocalEndpoint 返回监听端点
func (h *Host) LocalEndpoint() types.Endpoint {
	return h.conn.LocalEndpoint()
}

// Schema 返回表结构
func (h *Host) Schema() *Schema {
	return h.schema
}

// Stats 返回计数快照
func (h *Host) Stats() Stats {
	return h.stats.snapshot()
}

// Close 关闭套接字和存储
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return multierr.Combine(h.conn.Close(), h.store.Close())
}

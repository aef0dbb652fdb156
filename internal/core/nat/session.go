package nat

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pion/ice/v2"

	"github.com/dep2p/go-natlink/internal/util/logger"
	"github.com/dep2p/go-natlink/pkg/interfaces"
	"github.com/dep2p/go-natlink/pkg/types"
)

var log = logger.Logger("nat")

// readChunk 单次从 ICE 连接读取的上限
const readChunk = 64 * 1024

// ============================================================================
//                              选项
// ============================================================================

type options struct {
	factory  AgentFactory
	clock    clock.Clock
	reporter interfaces.BandwidthReporter
}

// Option 会话选项
type Option func(*options)

// WithAgentFactory 替换代理实现
func WithAgentFactory(f AgentFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithBandwidth 设置流量统计
func WithBandwidth(r interfaces.BandwidthReporter) Option {
	return func(o *options) { o.reporter = r }
}

// ============================================================================
//                              Session
// ============================================================================

// Session ICE 连通性会话
//
// 一个会话对应一条对端链路；进入 Failed 后不可复用。
type Session struct {
	id       string
	cfg      Config
	agent    Agent
	clk      clock.Clock
	reporter interfaces.BandwidthReporter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu              sync.Mutex
	state           types.SessionState
	localUfrag      string
	localPwd        string
	candidates      []string
	gathered        bool
	local           string
	localB64        string
	hasRemote       bool
	remote          Description
	connectingSince time.Time
	conn            net.Conn
	pendingUp       types.SessionState
	closed          bool

	inMu    sync.Mutex
	inbound bytes.Buffer
	dropped atomic.Uint64
}

// NewSession 创建会话并开始收集候选
func NewSession(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{factory: NewPionAgent, clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}

	agent, err := o.factory(cfg)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		agent:    agent,
		clk:      o.clock,
		reporter: o.reporter,
		state:    types.SessionGathering,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	ufrag, pwd, err := agent.Credentials()
	if err != nil {
		s.abort()
		return nil, err
	}
	s.localUfrag, s.localPwd = ufrag, pwd

	if err := agent.OnStateChange(s.onStateChange); err != nil {
		s.abort()
		return nil, err
	}
	if err := agent.OnCandidate(s.onCandidate); err != nil {
		s.abort()
		return nil, err
	}
	if err := agent.Gather(); err != nil {
		s.abort()
		return nil, err
	}

	log.Debug("会话开始收集候选", "session", s.id, "stun", cfg.STUNURI())
	return s, nil
}

func (s *Session) abort() {
	s.cancel()
	_ = s.agent.Close()
}

// ID 返回会话标识
func (s *Session) ID() string {
	return s.id
}

// ============================================================================
//                              代理回调
// ============================================================================

func (s *Session) onCandidate(c string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.gathered {
		return
	}
	if c != "" {
		s.candidates = append(s.candidates, c)
		return
	}

	id := uuid.MustParse(s.id)
	desc := Description{
		SessionID:  binary.BigEndian.Uint64(id[:8]) >> 1,
		Ufrag:      s.localUfrag,
		Pwd:        s.localPwd,
		Candidates: s.candidates,
	}
	text, err := desc.Marshal()
	if err != nil {
		log.Warn("生成本地描述失败", "session", s.id, "error", err)
		s.state = types.SessionFailed
		return
	}
	s.local = text
	s.localB64 = EncodeBase64(text)
	s.gathered = true
	log.Info("候选收集完成", "session", s.id, "candidates", len(s.candidates))
}

func (s *Session) onStateChange(st ice.ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state == types.SessionFailed {
		return
	}
	prev := s.state
	switch st {
	case ice.ConnectionStateChecking:
		s.state = types.SessionConnecting
	case ice.ConnectionStateConnected, ice.ConnectionStateCompleted:
		up := types.SessionConnected
		if st == ice.ConnectionStateCompleted {
			up = types.SessionCompleted
		}
		if s.conn == nil {
			// 连接对象就绪前保持 Connecting，由 connect 提升
			s.pendingUp = up
			return
		}
		s.state = up
	case ice.ConnectionStateFailed:
		s.state = types.SessionFailed
	case ice.ConnectionStateDisconnected:
		// 连通后丢失路径，重新计时
		s.state = types.SessionConnecting
		s.pendingUp = types.SessionDisconnected
		s.connectingSince = s.clk.Now()
	default:
		return
	}
	if prev != s.state {
		log.Info("会话状态变化", "session", s.id, "from", prev, "to", s.state, "ice", st.String())
	}
}

// ============================================================================
//                              本地描述
// ============================================================================

// IsReady 候选收集是否完成，完成后本地描述不再变化
func (s *Session) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gathered
}

// LocalDescription 返回本地描述，收集完成前为空
func (s *Session) LocalDescription() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// LocalDescriptionBase64 返回本地描述的 base64 形式，收集完成前为空
func (s *Session) LocalDescriptionBase64() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localB64
}

// ============================================================================
//                              远端描述
// ============================================================================

// SetRemoteDescription 应用对端描述
//
// 只有第一次调用生效，之后的调用不做任何事。无法解析的描述被拒绝，
// 会话状态不变。
func (s *Session) SetRemoteDescription(text string) error {
	d, err := ParseDescription(text)
	if err != nil {
		log.Warn("拒绝远端描述", "session", s.id, "error", err)
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.hasRemote {
		s.mu.Unlock()
		log.Debug("远端描述已设置，忽略", "session", s.id)
		return nil
	}
	s.hasRemote = true
	s.remote = d
	s.connectingSince = s.clk.Now()
	if s.state != types.SessionFailed {
		s.state = types.SessionConnecting
	}
	controlling := s.localUfrag < d.Ufrag
	s.wg.Add(1)
	s.mu.Unlock()

	for _, c := range d.Candidates {
		if err := s.agent.AddRemoteCandidate(c); err != nil {
			log.Debug("忽略无法解析的远端候选", "session", s.id, "candidate", c, "error", err)
		}
	}

	log.Info("远端描述已应用", "session", s.id, "candidates", len(d.Candidates), "controlling", controlling)
	go s.connect(controlling, d.Ufrag, d.Pwd)
	return nil
}

// SetRemoteDescriptionBase64 应用 base64 形式的对端描述
func (s *Session) SetRemoteDescriptionBase64(encoded string) error {
	text, err := DecodeBase64(encoded)
	if err != nil {
		log.Warn("拒绝远端描述", "session", s.id, "error", err)
		return err
	}
	return s.SetRemoteDescription(text)
}

// HasRemoteDescription 是否已应用远端描述
func (s *Session) HasRemoteDescription() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasRemote
}

// RemoteDescription 返回已应用的远端描述
func (s *Session) RemoteDescription() (Description, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote, s.hasRemote
}

func (s *Session) connect(controlling bool, ufrag, pwd string) {
	defer s.wg.Done()

	conn, err := s.agent.Connect(s.ctx, controlling, ufrag, pwd)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.state = types.SessionFailed
		s.mu.Unlock()
		log.Warn("ICE 连接失败", "session", s.id, "error", err)
		return
	}
	s.conn = conn
	prev := s.state
	if s.state != types.SessionFailed {
		s.state = types.SessionConnected
		if s.pendingUp == types.SessionCompleted {
			s.state = types.SessionCompleted
		}
	}
	s.pendingUp = types.SessionDisconnected
	next := s.state
	s.wg.Add(1)
	s.mu.Unlock()

	if prev != next {
		log.Info("会话状态变化", "session", s.id, "from", prev, "to", next)
	}
	log.Debug("ICE 连接已建立", "session", s.id, "remote", conn.RemoteAddr())
	go s.readLoop(conn)
}

func (s *Session) readLoop(conn net.Conn) {
	defer s.wg.Done()

	buf := make([]byte, readChunk)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if !s.isClosed() {
				log.Debug("ICE 读取结束", "session", s.id, "error", err)
			}
			return
		}
		s.enqueue(buf[:n])
	}
}

func (s *Session) enqueue(p []byte) {
	s.inMu.Lock()
	defer s.inMu.Unlock()

	if s.inbound.Len()+len(p) > s.cfg.MaxInboundBuffer {
		s.dropped.Add(1)
		log.Warn("入站缓冲已满，丢弃数据报", "session", s.id, "size", len(p), "buffered", s.inbound.Len())
		return
	}
	s.inbound.Write(p)
	if s.reporter != nil {
		s.reporter.LogRecv(string(types.KindICE), int64(len(p)))
	}
}

// ============================================================================
//                              数据收发
// ============================================================================

// Send 通过选定的候选对发送一个数据报
func (s *Session) Send(p []byte) (int, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return 0, ErrSessionClosed
	case !s.hasRemote:
		s.mu.Unlock()
		return 0, ErrNoRemoteDescription
	case s.conn == nil:
		s.mu.Unlock()
		return 0, ErrNotConnected
	}
	conn := s.conn
	s.mu.Unlock()

	n, err := conn.Write(p)
	if err != nil {
		return n, err
	}
	if s.reporter != nil {
		s.reporter.LogSent(string(types.KindICE), int64(n))
	}
	return n, nil
}

// Receive 从入站缓冲取出至多 len(p) 个字节，没有数据时返回 0
func (s *Session) Receive(p []byte) (int, error) {
	if s.isClosed() {
		return 0, ErrSessionClosed
	}
	s.inMu.Lock()
	defer s.inMu.Unlock()

	if s.inbound.Len() == 0 {
		return 0, nil
	}
	n, _ := s.inbound.Read(p)
	return n, nil
}

// Buffered 入站缓冲中的字节数
func (s *Session) Buffered() int {
	s.inMu.Lock()
	defer s.inMu.Unlock()
	return s.inbound.Len()
}

// Dropped 因缓冲已满丢弃的数据报数
func (s *Session) Dropped() uint64 {
	return s.dropped.Load()
}

// ============================================================================
//                              状态查询
// ============================================================================

// State 返回会话状态
func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected 状态为 Connected 或 Completed
func (s *Session) IsConnected() bool {
	st := s.State()
	return st == types.SessionConnected || st == types.SessionCompleted
}

// HasProblem 协商失败，或设置远端描述后超过 ConnectTimeout 仍在 Connecting
func (s *Session) HasProblem() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case types.SessionFailed:
		return true
	case types.SessionConnecting:
		return s.hasRemote && s.clk.Since(s.connectingSince) > s.cfg.ConnectTimeout
	}
	return false
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close 释放代理，之后不再处理任何回调
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.state = types.SessionClosed
	s.mu.Unlock()

	s.cancel()
	err := s.agent.Close()
	s.wg.Wait()

	log.Debug("会话已关闭", "session", s.id)
	return err
}

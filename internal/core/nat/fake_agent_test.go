package nat

import (
	"context"
	"net"
	"sync"

	"github.com/pion/ice/v2"
)

// fakeAgent 由测试驱动回调的代理
type fakeAgent struct {
	ufrag string
	pwd   string

	// ConnectFunc 非空时替代默认的阻塞实现
	ConnectFunc func(ctx context.Context, controlling bool, ufrag, pwd string) (net.Conn, error)

	// GatherFunc 非空时返回其错误
	GatherFunc func() error

	mu       sync.Mutex
	onState  func(ice.ConnectionState)
	onCand   func(string)
	gathers  int
	remote   []string
	conns    []net.Conn
	closed   bool
	closeErr error
}

var _ Agent = (*fakeAgent)(nil)

func newFakeAgent(ufrag string) *fakeAgent {
	return &fakeAgent{ufrag: ufrag, pwd: "pwd-" + ufrag + "-0123456789abcdef"}
}

// factory 返回总是给出该代理的工厂
func (a *fakeAgent) factory() AgentFactory {
	return func(Config) (Agent, error) { return a, nil }
}

func (a *fakeAgent) OnStateChange(fn func(ice.ConnectionState)) error {
	a.mu.Lock()
	a.onState = fn
	a.mu.Unlock()
	return nil
}

func (a *fakeAgent) OnCandidate(fn func(string)) error {
	a.mu.Lock()
	a.onCand = fn
	a.mu.Unlock()
	return nil
}

func (a *fakeAgent) Gather() error {
	a.mu.Lock()
	a.gathers++
	a.mu.Unlock()
	if a.GatherFunc != nil {
		return a.GatherFunc()
	}
	return nil
}

func (a *fakeAgent) Credentials() (string, string, error) {
	return a.ufrag, a.pwd, nil
}

func (a *fakeAgent) AddRemoteCandidate(c string) error {
	a.mu.Lock()
	a.remote = append(a.remote, c)
	a.mu.Unlock()
	return nil
}

func (a *fakeAgent) Connect(ctx context.Context, controlling bool, ufrag, pwd string) (net.Conn, error) {
	if a.ConnectFunc != nil {
		conn, err := a.ConnectFunc(ctx, controlling, ufrag, pwd)
		if conn != nil {
			a.mu.Lock()
			a.conns = append(a.conns, conn)
			a.mu.Unlock()
		}
		return conn, err
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (a *fakeAgent) Close() error {
	a.mu.Lock()
	a.closed = true
	conns := a.conns
	a.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
	return a.closeErr
}

// candidate 模拟发现一个本地候选，空字符串表示收集完成
func (a *fakeAgent) candidate(c string) {
	a.mu.Lock()
	fn := a.onCand
	a.mu.Unlock()
	fn(c)
}

// state 模拟连通状态变化
func (a *fakeAgent) state(st ice.ConnectionState) {
	a.mu.Lock()
	fn := a.onState
	a.mu.Unlock()
	fn(st)
}

func (a *fakeAgent) remoteCandidates() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.remote...)
}

func (a *fakeAgent) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

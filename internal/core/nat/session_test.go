package nat

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pion/ice/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natlink/pkg/types"
)

const waitFor = 5 * time.Second

func newTestSession(t *testing.T, agent *fakeAgent, clk clock.Clock, mutate ...func(*Config)) *Session {
	t.Helper()
	cfg := DefaultConfig()
	cfg.STUNHost = ""
	for _, m := range mutate {
		m(&cfg)
	}
	opts := []Option{WithAgentFactory(agent.factory())}
	if clk != nil {
		opts = append(opts, WithClock(clk))
	}
	s, err := NewSession(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func remoteText(t *testing.T, ufrag string, cands ...string) string {
	t.Helper()
	text, err := Description{Ufrag: ufrag, Pwd: "remote-password-0123456", Candidates: cands}.Marshal()
	require.NoError(t, err)
	return text
}

// TestSession_Gathering 测试候选收集完成后本地描述可用
func TestSession_Gathering(t *testing.T) {
	agent := newFakeAgent("local")
	s := newTestSession(t, agent, nil)

	assert.Equal(t, 1, agent.gathers)
	assert.Equal(t, types.SessionGathering, s.State())
	assert.False(t, s.IsReady())
	assert.Empty(t, s.LocalDescription())
	assert.NotEmpty(t, s.ID())

	agent.candidate(hostCand)
	agent.candidate(srflxCand)
	assert.False(t, s.IsReady())

	agent.candidate("")
	require.True(t, s.IsReady())

	d, err := ParseDescription(s.LocalDescription())
	require.NoError(t, err)
	assert.Equal(t, "local", d.Ufrag)
	assert.Equal(t, agent.pwd, d.Pwd)
	assert.Equal(t, []string{hostCand, srflxCand}, d.Candidates)

	decoded, err := DecodeBase64(s.LocalDescriptionBase64())
	require.NoError(t, err)
	assert.Equal(t, s.LocalDescription(), decoded)

	// 收集完成后描述不再变化
	before := s.LocalDescription()
	agent.candidate("999 1 udp 1 10.0.0.1 1 typ host")
	assert.Equal(t, before, s.LocalDescription())
}

// TestSession_GatherFailure 测试收集启动失败时释放代理
func TestSession_GatherFailure(t *testing.T) {
	agent := newFakeAgent("local")
	agent.GatherFunc = func() error { return errors.New("no interfaces") }

	_, err := NewSession(DefaultConfig(), WithAgentFactory(agent.factory()))
	assert.Error(t, err)
	assert.True(t, agent.isClosed())
}

// TestSession_SetRemoteOnce 测试远端描述只生效一次
func TestSession_SetRemoteOnce(t *testing.T) {
	agent := newFakeAgent("local")
	s := newTestSession(t, agent, nil)

	first := remoteText(t, "first", hostCand)
	second := remoteText(t, "second", srflxCand)

	require.NoError(t, s.SetRemoteDescription(first))
	assert.True(t, s.HasRemoteDescription())
	assert.Equal(t, types.SessionConnecting, s.State())

	require.NoError(t, s.SetRemoteDescriptionBase64(EncodeBase64(second)))

	d, ok := s.RemoteDescription()
	require.True(t, ok)
	assert.Equal(t, "first", d.Ufrag)
	assert.Equal(t, []string{hostCand}, agent.remoteCandidates())
}

// TestSession_MalformedRemote 测试无法解析的远端描述不改变状态
func TestSession_MalformedRemote(t *testing.T) {
	agent := newFakeAgent("local")
	s := newTestSession(t, agent, nil)

	assert.ErrorIs(t, s.SetRemoteDescriptionBase64("***not base64***"), ErrInvalidDescription)
	assert.ErrorIs(t, s.SetRemoteDescription("garbage"), ErrInvalidDescription)

	assert.False(t, s.HasRemoteDescription())
	assert.Equal(t, types.SessionGathering, s.State())
	assert.Empty(t, agent.remoteCandidates())

	// 之后仍可应用合法描述
	require.NoError(t, s.SetRemoteDescription(remoteText(t, "peer")))
	assert.True(t, s.HasRemoteDescription())
}

// TestSession_HasProblemTimeout 测试 Connecting 超时
func TestSession_HasProblemTimeout(t *testing.T) {
	clk := clock.NewMock()
	local, peer := net.Pipe()
	defer peer.Close()
	release := make(chan struct{})
	agent := newFakeAgent("local")
	agent.ConnectFunc = func(ctx context.Context, _ bool, _, _ string) (net.Conn, error) {
		select {
		case <-release:
			return local, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s := newTestSession(t, agent, clk)

	// 未设置远端描述时不计时
	clk.Add(time.Minute)
	assert.False(t, s.HasProblem())

	require.NoError(t, s.SetRemoteDescription(remoteText(t, "peer")))
	agent.state(ice.ConnectionStateChecking)
	assert.False(t, s.HasProblem())

	clk.Add(15 * time.Second)
	assert.False(t, s.HasProblem())

	clk.Add(time.Millisecond)
	assert.True(t, s.HasProblem())

	agent.state(ice.ConnectionStateConnected)
	close(release)
	require.Eventually(t, s.IsConnected, waitFor, time.Millisecond)
	assert.False(t, s.HasProblem())
}

// TestSession_Failed 测试 Failed 为终态
func TestSession_Failed(t *testing.T) {
	agent := newFakeAgent("local")
	s := newTestSession(t, agent, nil)

	require.NoError(t, s.SetRemoteDescription(remoteText(t, "peer")))
	agent.state(ice.ConnectionStateFailed)
	assert.True(t, s.HasProblem())
	assert.False(t, s.IsConnected())

	agent.state(ice.ConnectionStateConnected)
	assert.Equal(t, types.SessionFailed, s.State())
}

// TestSession_StateMapping 测试代理状态映射
func TestSession_StateMapping(t *testing.T) {
	clk := clock.NewMock()
	local, peer := net.Pipe()
	defer peer.Close()
	agent := newFakeAgent("local")
	agent.ConnectFunc = func(context.Context, bool, string, string) (net.Conn, error) {
		return local, nil
	}
	s := newTestSession(t, agent, clk)
	require.NoError(t, s.SetRemoteDescription(remoteText(t, "peer")))
	require.Eventually(t, s.IsConnected, waitFor, time.Millisecond)
	assert.Equal(t, types.SessionConnected, s.State())

	agent.state(ice.ConnectionStateCompleted)
	assert.True(t, s.IsConnected())
	assert.Equal(t, types.SessionCompleted, s.State())

	// 断开后重新进入 Connecting 并重新计时
	clk.Add(time.Hour)
	agent.state(ice.ConnectionStateDisconnected)
	assert.Equal(t, types.SessionConnecting, s.State())
	assert.False(t, s.HasProblem())

	agent.state(ice.ConnectionStateNew)
	assert.Equal(t, types.SessionConnecting, s.State())
}

// TestSession_ConnectedAfterConn 测试连接对象就绪前不报告连通
func TestSession_ConnectedAfterConn(t *testing.T) {
	local, peer := net.Pipe()
	defer peer.Close()
	release := make(chan struct{})
	agent := newFakeAgent("local")
	agent.ConnectFunc = func(ctx context.Context, _ bool, _, _ string) (net.Conn, error) {
		select {
		case <-release:
			return local, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s := newTestSession(t, agent, nil)
	require.NoError(t, s.SetRemoteDescription(remoteText(t, "peer")))

	agent.state(ice.ConnectionStateCompleted)
	assert.False(t, s.IsConnected())
	assert.Equal(t, types.SessionConnecting, s.State())
	_, err := s.Send([]byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)

	close(release)
	require.Eventually(t, s.IsConnected, waitFor, time.Millisecond)
	assert.Equal(t, types.SessionCompleted, s.State())

	go func() { _, _ = peer.Read(make([]byte, 4)) }()
	n, err := s.Send([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestSession_Role 测试按 ufrag 决定控制角色
func TestSession_Role(t *testing.T) {
	tests := []struct {
		local, remote string
		controlling   bool
	}{
		{"aaaa", "bbbb", true},
		{"bbbb", "aaaa", false},
	}
	for _, tt := range tests {
		agent := newFakeAgent(tt.local)
		roles := make(chan bool, 1)
		agent.ConnectFunc = func(ctx context.Context, controlling bool, ufrag, pwd string) (net.Conn, error) {
			roles <- controlling
			<-ctx.Done()
			return nil, ctx.Err()
		}
		s := newTestSession(t, agent, nil)
		require.NoError(t, s.SetRemoteDescription(remoteText(t, tt.remote)))

		select {
		case got := <-roles:
			assert.Equal(t, tt.controlling, got, "%s vs %s", tt.local, tt.remote)
		case <-time.After(waitFor):
			t.Fatal("Connect not called")
		}
	}
}

// TestSession_Data 测试收发数据
func TestSession_Data(t *testing.T) {
	local, peer := net.Pipe()
	agent := newFakeAgent("local")
	agent.ConnectFunc = func(context.Context, bool, string, string) (net.Conn, error) {
		return local, nil
	}
	s := newTestSession(t, agent, nil)

	_, err := s.Send([]byte("x"))
	assert.ErrorIs(t, err, ErrNoRemoteDescription)

	require.NoError(t, s.SetRemoteDescription(remoteText(t, "peer")))
	agent.state(ice.ConnectionStateConnected)

	require.Eventually(t, s.IsConnected, waitFor, time.Millisecond)

	_, err = peer.Write([]byte("hello"))
	require.NoError(t, err)
	_, err = peer.Write([]byte(" world"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Buffered() == 11 }, waitFor, time.Millisecond)

	buf := make([]byte, 8)
	n, err := s.Receive(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello wo", string(buf[:n]))

	n, err = s.Receive(buf)
	require.NoError(t, err)
	assert.Equal(t, "rld", string(buf[:n]))

	n, err = s.Receive(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	got := make(chan string, 1)
	go func() {
		b := make([]byte, 16)
		n, _ := peer.Read(b)
		got <- string(b[:n])
	}()
	n, err = s.Send([]byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "ping", <-got)
}

// TestSession_InboundLimit 测试入站缓冲上限
func TestSession_InboundLimit(t *testing.T) {
	local, peer := net.Pipe()
	agent := newFakeAgent("local")
	agent.ConnectFunc = func(context.Context, bool, string, string) (net.Conn, error) {
		return local, nil
	}
	s := newTestSession(t, agent, nil, func(c *Config) { c.MaxInboundBuffer = 8 })
	require.NoError(t, s.SetRemoteDescription(remoteText(t, "peer")))

	for i := 0; i < 2; i++ {
		_, err := peer.Write([]byte("12345"))
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return s.Dropped() == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, 5, s.Buffered())
}

// TestSession_ConnectError 测试连接失败进入 Failed
func TestSession_ConnectError(t *testing.T) {
	agent := newFakeAgent("local")
	agent.ConnectFunc = func(context.Context, bool, string, string) (net.Conn, error) {
		return nil, errors.New("bad credentials")
	}
	s := newTestSession(t, agent, nil)
	require.NoError(t, s.SetRemoteDescription(remoteText(t, "peer")))

	assert.Eventually(t, s.HasProblem, waitFor, time.Millisecond)
	assert.Equal(t, types.SessionFailed, s.State())
}

// TestSession_Close 测试关闭后不再处理回调
func TestSession_Close(t *testing.T) {
	local, peer := net.Pipe()
	defer peer.Close()
	agent := newFakeAgent("local")
	agent.ConnectFunc = func(context.Context, bool, string, string) (net.Conn, error) {
		return local, nil
	}
	s := newTestSession(t, agent, nil)
	require.NoError(t, s.SetRemoteDescription(remoteText(t, "peer")))
	require.Eventually(t, s.IsConnected, waitFor, time.Millisecond)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, agent.isClosed())

	agent.state(ice.ConnectionStateConnected)
	agent.candidate("")
	assert.Equal(t, types.SessionClosed, s.State())
	assert.False(t, s.IsReady())

	_, err := s.Receive(make([]byte, 4))
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.Send([]byte("x"))
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.SetRemoteDescription(remoteText(t, "other")), ErrSessionClosed)

	_, err = peer.Write([]byte("late"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

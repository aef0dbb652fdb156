package nat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-natlink/config"
)

func loopbackConfig() Config {
	cfg := DefaultConfig()
	cfg.STUNHost = ""
	cfg.IncludeLoopback = true
	return cfg
}

// TestPionAgent_Loopback 测试两个真实 ICE 会话在本机互通
func TestPionAgent_Loopback(t *testing.T) {
	if testing.Short() {
		t.Skip("跳过 ICE 集成测试")
	}

	a, err := NewSession(loopbackConfig())
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSession(loopbackConfig())
	require.NoError(t, err)
	defer b.Close()

	ready := func() bool { return a.IsReady() && b.IsReady() }
	deadline := time.Now().Add(10 * time.Second)
	for !ready() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !ready() {
		t.Skip("本机无法完成候选收集")
	}

	require.NoError(t, a.SetRemoteDescriptionBase64(b.LocalDescriptionBase64()))
	require.NoError(t, b.SetRemoteDescription(a.LocalDescription()))

	require.Eventually(t, func() bool {
		return a.IsConnected() && b.IsConnected()
	}, 20*time.Second, 20*time.Millisecond)
	assert.False(t, a.HasProblem())

	_, err = a.Send([]byte("over ice"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	require.Eventually(t, func() bool { return b.Buffered() == len("over ice") }, 5*time.Second, 5*time.Millisecond)
	n, err := b.Receive(buf)
	require.NoError(t, err)
	assert.Equal(t, "over ice", string(buf[:n]))
}

// TestFactory 测试会话工厂
func TestFactory(t *testing.T) {
	agents := []*fakeAgent{newFakeAgent("a"), newFakeAgent("b")}
	next := 0
	f := NewFactory(loopbackConfig(), WithAgentFactory(func(Config) (Agent, error) {
		a := agents[next]
		next++
		return a, nil
	}))

	s1, err := f.NewSession()
	require.NoError(t, err)
	_, err = f.NewSession()
	require.NoError(t, err)
	assert.Equal(t, 2, f.Active())

	require.NoError(t, f.Release(s1))
	assert.Equal(t, 1, f.Active())
	assert.True(t, agents[0].isClosed())

	require.NoError(t, f.Close())
	assert.Zero(t, f.Active())
	assert.True(t, agents[1].isClosed())
}

// TestModule 测试 Fx 模块
func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.NAT.STUNHost = ""

	var f *Factory
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&f),
	)
	app.RequireStart()

	require.NotNil(t, f)
	assert.Empty(t, f.Config().STUNURI())
	assert.Equal(t, 15*time.Second, f.Config().ConnectTimeout)

	app.RequireStop()
}

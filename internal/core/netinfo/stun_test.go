package netinfo

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pion/stun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natlink/pkg/types"
)

// startSTUNServer 在回环地址上启动一个回显映射地址的 STUN 服务器
func startSTUNServer(t *testing.T, xor bool) string {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 1500)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			req := &stun.Message{Raw: append([]byte(nil), buf[:n]...)}
			if err := req.Decode(); err != nil {
				continue
			}
			var setter stun.Setter = &stun.XORMappedAddress{IP: from.IP, Port: from.Port}
			if !xor {
				setter = &stun.MappedAddress{IP: from.IP, Port: from.Port}
			}
			res, err := stun.Build(
				stun.NewTransactionIDSetter(req.TransactionID),
				stun.BindingSuccess,
				setter,
			)
			if err != nil {
				continue
			}
			_, _ = conn.WriteToUDP(res.Raw, from)
		}
	}()
	return conn.LocalAddr().String()
}

// TestSTUNClient_XORMapped 测试从 XOR-MAPPED-ADDRESS 获取外部地址
func TestSTUNClient_XORMapped(t *testing.T) {
	server := startSTUNServer(t, true)
	c := NewSTUNClient([]string{server}, WithRetries(1), WithSTUNTimeout(2*time.Second))

	ep, err := c.ExternalEndpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [4]byte{127, 0, 0, 1}, ep.IP())
	assert.NotZero(t, ep.Port())
}

// TestSTUNClient_MappedFallback 测试旧版 MAPPED-ADDRESS
func TestSTUNClient_MappedFallback(t *testing.T) {
	server := startSTUNServer(t, false)
	c := NewSTUNClient([]string{server}, WithRetries(1), WithSTUNTimeout(2*time.Second))

	ep, err := c.ExternalEndpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ep.Addr().String())
}

// TestSTUNClient_Cache 测试缓存与过期
func TestSTUNClient_Cache(t *testing.T) {
	clk := clock.NewMock()
	c := NewSTUNClient([]string{"stun.invalid:3478"}, WithSTUNClock(clk), WithCacheDuration(time.Minute))

	var calls atomic.Int32
	want := types.NewEndpoint([4]byte{203, 0, 113, 5}, 40000)
	c.queryFunc = func(context.Context, string) (types.Endpoint, error) {
		calls.Add(1)
		return want, nil
	}

	for i := 0; i < 3; i++ {
		ep, err := c.ExternalEndpoint(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, ep)
	}
	assert.EqualValues(t, 1, calls.Load())

	clk.Add(time.Minute)
	_, err := c.ExternalEndpoint(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())

	c.Invalidate()
	_, err = c.ExternalEndpoint(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

// TestSTUNClient_NextServer 测试一个服务器失败后尝试下一个
func TestSTUNClient_NextServer(t *testing.T) {
	clk := clock.NewMock()
	c := NewSTUNClient([]string{"a:1", "b:2"}, WithSTUNClock(clk), WithRetries(1))

	want := types.NewEndpoint([4]byte{198, 51, 100, 1}, 1234)
	var tried []string
	c.queryFunc = func(_ context.Context, server string) (types.Endpoint, error) {
		tried = append(tried, server)
		if server == "a:1" {
			return types.Endpoint{}, &STUNError{Server: server, Message: "read response"}
		}
		return want, nil
	}

	done := make(chan struct{})
	var got types.Endpoint
	var gotErr error
	go func() {
		defer close(done)
		got, gotErr = c.ExternalEndpoint(context.Background())
	}()

	// 第一个服务器失败后等待 1s 退避
	require.Eventually(t, func() bool {
		clk.Add(time.Second)
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, gotErr)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"a:1", "b:2"}, tried)
}

// TestSTUNClient_AllFail 测试全部失败
func TestSTUNClient_AllFail(t *testing.T) {
	c := NewSTUNClient([]string{"a:1"}, WithRetries(1))
	c.queryFunc = func(_ context.Context, server string) (types.Endpoint, error) {
		return types.Endpoint{}, &STUNError{Server: server, Message: "read response", Cause: errors.New("refused")}
	}

	_, err := c.ExternalEndpoint(context.Background())
	assert.ErrorIs(t, err, ErrSTUNTimeout)
}

// TestSTUNClient_NoServers 测试未配置服务器
func TestSTUNClient_NoServers(t *testing.T) {
	_, err := NewSTUNClient(nil).ExternalEndpoint(context.Background())
	assert.ErrorIs(t, err, ErrNoServers)
}

// TestSTUNClient_Canceled 测试已取消的上下文
func TestSTUNClient_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSTUNClient([]string{"a:1"}).ExternalEndpoint(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestSTUNError 测试错误展开
func TestSTUNError(t *testing.T) {
	cause := errors.New("refused")
	err := &STUNError{Server: "s:1", Message: "read response", Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "s:1")
}

// TestConfigFromUnified 测试统一配置转换
func TestConfigFromUnified(t *testing.T) {
	def := ConfigFromUnified(nil)
	assert.Equal(t, 5*time.Minute, def.CacheDuration)
	assert.Empty(t, def.DiscoverOptions())

	c := NewSTUNClient(nil)
	assert.Empty(t, c.Servers())
	assert.NotEmpty(t, def.NewSTUNClient().Servers())
}

package netinfo

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pion/stun"

	"github.com/dep2p/go-natlink/pkg/types"
)

// STUNClient 查询本机的服务器反射地址
type STUNClient struct {
	servers []string
	timeout time.Duration
	retries int
	clk     clock.Clock

	mu            sync.RWMutex
	cached        types.Endpoint
	cachedAt      time.Time
	cacheDuration time.Duration

	// 测试钩子，替代网络查询
	queryFunc func(ctx context.Context, server string) (types.Endpoint, error)
}

// STUNOption STUN 客户端选项
type STUNOption func(*STUNClient)

// WithSTUNClock 注入时钟（用于缓存与退避）
func WithSTUNClock(clk clock.Clock) STUNOption {
	return func(s *STUNClient) { s.clk = clk }
}

// WithRetries 每个服务器的尝试次数
func WithRetries(n int) STUNOption {
	return func(s *STUNClient) {
		if n > 0 {
			s.retries = n
		}
	}
}

// WithSTUNTimeout 单次查询超时
func WithSTUNTimeout(d time.Duration) STUNOption {
	return func(s *STUNClient) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithCacheDuration 外部地址缓存时长
func WithCacheDuration(d time.Duration) STUNOption {
	return func(s *STUNClient) {
		if d > 0 {
			s.cacheDuration = d
		}
	}
}

// NewSTUNClient 创建 STUN 客户端，servers 形如 "host:port"
func NewSTUNClient(servers []string, opts ...STUNOption) *STUNClient {
	s := &STUNClient{
		servers:       append([]string(nil), servers...),
		timeout:       5 * time.Second,
		retries:       3,
		clk:           clock.New(),
		cacheDuration: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Servers 返回配置的服务器
func (s *STUNClient) Servers() []string {
	return append([]string(nil), s.servers...)
}

// ExternalEndpoint 返回服务器反射地址
//
// 依次尝试每个服务器，单个服务器失败后按 1s、2s... 退避重试。
// 成功结果在缓存期内直接返回。
func (s *STUNClient) ExternalEndpoint(ctx context.Context) (types.Endpoint, error) {
	if ep, ok := s.cachedEndpoint(); ok {
		return ep, nil
	}
	if len(s.servers) == 0 {
		return types.Endpoint{}, ErrNoServers
	}
	if err := ctx.Err(); err != nil {
		return types.Endpoint{}, err
	}

	query := s.queryFunc
	if query == nil {
		query = s.queryServer
	}

	var lastErr error
	for i, server := range s.servers {
		for retry := 0; retry < s.retries; retry++ {
			ep, err := query(ctx, server)
			if err == nil {
				s.setCached(ep)
				log.Debug("外部地址", "server", server, "endpoint", ep)
				return ep, nil
			}
			lastErr = err
			log.Debug("STUN 查询失败", "server", server, "attempt", retry+1, "error", err)

			last := i == len(s.servers)-1 && retry == s.retries-1
			if last {
				break
			}
			select {
			case <-ctx.Done():
				return types.Endpoint{}, ctx.Err()
			case <-s.clk.After(time.Duration(1<<retry) * time.Second):
			}
		}
	}

	log.Info("所有 STUN 服务器查询失败", "servers", len(s.servers), "error", lastErr)
	return types.Endpoint{}, ErrSTUNTimeout
}

// Invalidate 清除缓存
func (s *STUNClient) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = types.Endpoint{}
	s.cachedAt = time.Time{}
}

// queryServer 向单个服务器发送 Binding 请求
func (s *STUNClient) queryServer(ctx context.Context, server string) (types.Endpoint, error) {
	raddr, err := net.ResolveUDPAddr("udp4", server)
	if err != nil {
		return types.Endpoint{}, &STUNError{Server: server, Message: "resolve server address", Cause: err}
	}

	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return types.Endpoint{}, &STUNError{Server: server, Message: "dial server", Cause: err}
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	req, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return types.Endpoint{}, &STUNError{Server: server, Message: "build request", Cause: err}
	}
	if _, err := req.WriteTo(conn); err != nil {
		return types.Endpoint{}, &STUNError{Server: server, Message: "send request", Cause: err}
	}

	buf := make([]byte, 1500)
	n, err := conn.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return types.Endpoint{}, ctx.Err()
		}
		return types.Endpoint{}, &STUNError{Server: server, Message: "read response", Cause: err}
	}

	res := &stun.Message{Raw: append([]byte(nil), buf[:n]...)}
	if err := res.Decode(); err != nil {
		return types.Endpoint{}, &STUNError{Server: server, Message: "decode response", Cause: err}
	}
	if res.TransactionID != req.TransactionID {
		return types.Endpoint{}, &STUNError{Server: server, Message: "transaction id mismatch"}
	}

	var ip net.IP
	var port int
	var xor stun.XORMappedAddress
	if err := xor.GetFrom(res); err == nil {
		ip, port = xor.IP, xor.Port
	} else {
		// 旧版 STUN 只带 MAPPED-ADDRESS
		var mapped stun.MappedAddress
		if err := mapped.GetFrom(res); err != nil {
			return types.Endpoint{}, &STUNError{Server: server, Message: "no mapped address in response", Cause: err}
		}
		ip, port = mapped.IP, mapped.Port
	}

	ep, err := types.EndpointFromBytes(ip.To4(), uint16(port))
	if err != nil {
		return types.Endpoint{}, &STUNError{Server: server, Message: "mapped address is not IPv4", Cause: err}
	}
	return ep, nil
}

func (s *STUNClient) cachedEndpoint() (types.Endpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached.IsZero() || s.clk.Since(s.cachedAt) >= s.cacheDuration {
		return types.Endpoint{}, false
	}
	return s.cached, true
}

func (s *STUNClient) setCached(ep types.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = ep
	s.cachedAt = s.clk.Now()
}

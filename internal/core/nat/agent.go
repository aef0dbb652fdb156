package nat

import (
	"context"
	"fmt"
	"net"

	"github.com/pion/ice/v2"
	"github.com/pion/stun"

	"github.com/dep2p/go-natlink/internal/util/logger"
)

// Agent 会话使用的 ICE 代理能力
//
// 候选以 SDP candidate 属性值的文本形式传递。Close 必须让阻塞中的
// Connect 返回，并让已建立连接上的 Read 返回错误。
type Agent interface {
	// OnStateChange 设置连通状态回调
	OnStateChange(fn func(ice.ConnectionState)) error

	// OnCandidate 设置本地候选回调，空字符串表示收集完成
	OnCandidate(fn func(candidate string)) error

	// Gather 开始异步收集本地候选
	Gather() error

	// Credentials 返回本地 ICE 凭据
	Credentials() (ufrag, pwd string, err error)

	// AddRemoteCandidate 添加远端候选
	AddRemoteCandidate(candidate string) error

	// Connect 以给定角色与远端建立连接，阻塞直到连通或 ctx 结束
	Connect(ctx context.Context, controlling bool, remoteUfrag, remotePwd string) (net.Conn, error)

	// Close 释放代理
	Close() error
}

// AgentFactory 按配置创建代理
type AgentFactory func(cfg Config) (Agent, error)

// ============================================================================
//                              pion 实现
// ============================================================================

// pionAgent 基于 pion/ice 的代理
type pionAgent struct {
	agent *ice.Agent
}

var _ Agent = (*pionAgent)(nil)

// NewPionAgent 创建 pion/ice 代理，只使用 IPv4 UDP，关闭 mDNS
func NewPionAgent(cfg Config) (Agent, error) {
	var urls []*stun.URI
	if raw := cfg.STUNURI(); raw != "" {
		u, err := stun.ParseURI(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: stun uri %q: %v", ErrInvalidConfig, raw, err)
		}
		urls = append(urls, u)
	}

	a, err := ice.NewAgent(&ice.AgentConfig{
		Urls:             urls,
		NetworkTypes:     []ice.NetworkType{ice.NetworkTypeUDP4},
		MulticastDNSMode: ice.MulticastDNSModeDisabled,
		IncludeLoopback:  cfg.IncludeLoopback,
		PortMin:          cfg.PortMin,
		PortMax:          cfg.PortMax,
		LoggerFactory:    logger.PionFactory{Subsystem: "nat.ice"},
	})
	if err != nil {
		return nil, fmt.Errorf("nat: create ice agent: %w", err)
	}
	return &pionAgent{agent: a}, nil
}

func (p *pionAgent) OnStateChange(fn func(ice.ConnectionState)) error {
	return p.agent.OnConnectionStateChange(fn)
}

func (p *pionAgent) OnCandidate(fn func(string)) error {
	return p.agent.OnCandidate(func(c ice.Candidate) {
		if c == nil {
			fn("")
			return
		}
		fn(c.Marshal())
	})
}

func (p *pionAgent) Gather() error {
	return p.agent.GatherCandidates()
}

func (p *pionAgent) Credentials() (string, string, error) {
	return p.agent.GetLocalUserCredentials()
}

func (p *pionAgent) AddRemoteCandidate(raw string) error {
	c, err := ice.UnmarshalCandidate(raw)
	if err != nil {
		return err
	}
	return p.agent.AddRemoteCandidate(c)
}

func (p *pionAgent) Connect(ctx context.Context, controlling bool, ufrag, pwd string) (net.Conn, error) {
	var (
		conn *ice.Conn
		err  error
	)
	if controlling {
		conn, err = p.agent.Dial(ctx, ufrag, pwd)
	} else {
		conn, err = p.agent.Accept(ctx, ufrag, pwd)
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (p *pionAgent) Close() error {
	return p.agent.Close()
}

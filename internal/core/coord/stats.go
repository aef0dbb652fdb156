package coord

import "sync/atomic"

// Stats 协议计数
type Stats struct {
	// Received 收到的数据报
	Received uint64

	// Sent 发出的数据报（主机为回复，客户端为推送和查询）
	Sent uint64

	// Dropped 丢弃的数据报（格式错误、超长或发送失败）
	Dropped uint64

	// Truncated 因回复超长被截掉的结果行
	Truncated uint64
}

type counters struct {
	received  atomic.Uint64
	sent      atomic.Uint64
	dropped   atomic.Uint64
	truncated atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Received:  c.received.Load(),
		Sent:      c.sent.Load(),
		Dropped:   c.dropped.Load(),
		Truncated: c.truncated.Load(),
	}
}

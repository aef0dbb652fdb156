package metrics

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-natlink/pkg/interfaces"
)

// Stats 某一类别（或全部）的收发快照，速率单位为字节/秒
type Stats struct {
	TotalIn  int64
	TotalOut int64
	RateIn   float64
	RateOut  float64
}

// BandwidthCounter 按套接字类别统计收发字节
//
// 总量使用原子计数；每个类别各有一对计数器与速率计算器，按需创建。
type BandwidthCounter struct {
	clock clock.Clock

	totalIn  atomic.Int64
	totalOut atomic.Int64

	totalInRate  *RateMeter
	totalOutRate *RateMeter

	mu    sync.RWMutex
	kinds map[string]*kindCounter
}

type kindCounter struct {
	in, out         atomic.Int64
	inRate, outRate *RateMeter
}

var _ interfaces.BandwidthReporter = (*BandwidthCounter)(nil)

// NewBandwidthCounter 创建计数器，clk 为 nil 时使用系统时钟
func NewBandwidthCounter(clk clock.Clock) *BandwidthCounter {
	if clk == nil {
		clk = clock.New()
	}
	return &BandwidthCounter{
		clock:        clk,
		totalInRate:  NewRateMeter(clk),
		totalOutRate: NewRateMeter(clk),
		kinds:        make(map[string]*kindCounter),
	}
}

// LogSent 记录发送的字节数
func (bwc *BandwidthCounter) LogSent(kind string, n int64) {
	bwc.totalOut.Add(n)
	bwc.totalOutRate.Add(n)
	k := bwc.kind(kind)
	k.out.Add(n)
	k.outRate.Add(n)
}

// LogRecv 记录接收的字节数
func (bwc *BandwidthCounter) LogRecv(kind string, n int64) {
	bwc.totalIn.Add(n)
	bwc.totalInRate.Add(n)
	k := bwc.kind(kind)
	k.in.Add(n)
	k.inRate.Add(n)
}

func (bwc *BandwidthCounter) kind(name string) *kindCounter {
	bwc.mu.RLock()
	k := bwc.kinds[name]
	bwc.mu.RUnlock()
	if k != nil {
		return k
	}

	bwc.mu.Lock()
	defer bwc.mu.Unlock()
	if k = bwc.kinds[name]; k == nil {
		k = &kindCounter{inRate: NewRateMeter(bwc.clock), outRate: NewRateMeter(bwc.clock)}
		bwc.kinds[name] = k
	}
	return k
}

// Totals 返回总量统计
func (bwc *BandwidthCounter) Totals() Stats {
	return Stats{
		TotalIn:  bwc.totalIn.Load(),
		TotalOut: bwc.totalOut.Load(),
		RateIn:   bwc.totalInRate.Rate(),
		RateOut:  bwc.totalOutRate.Rate(),
	}
}

// ForKind 返回指定类别的统计，未出现过的类别返回零值
func (bwc *BandwidthCounter) ForKind(kind string) Stats {
	bwc.mu.RLock()
	k := bwc.kinds[kind]
	bwc.mu.RUnlock()
	if k == nil {
		return Stats{}
	}
	return Stats{
		TotalIn:  k.in.Load(),
		TotalOut: k.out.Load(),
		RateIn:   k.inRate.Rate(),
		RateOut:  k.outRate.Rate(),
	}
}

// ByKind 返回所有类别的统计
func (bwc *BandwidthCounter) ByKind() map[string]Stats {
	out := make(map[string]Stats)
	for _, name := range bwc.Kinds() {
		out[name] = bwc.ForKind(name)
	}
	return out
}

// Kinds 返回已出现的类别，按名称排序
func (bwc *BandwidthCounter) Kinds() []string {
	bwc.mu.RLock()
	names := make([]string, 0, len(bwc.kinds))
	for name := range bwc.kinds {
		names = append(names, name)
	}
	bwc.mu.RUnlock()
	sort.Strings(names)
	return names
}

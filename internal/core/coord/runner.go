package coord

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// Updater 可被轮询驱动的协议端（Host 或 Client）
type Updater interface {
	Update() error
}

// DefaultBurst 每个轮询周期最多调用 Update 的次数
const DefaultBurst = 16

// Runner 按固定间隔驱动 Update 的后台循环
//
// Update 返回错误（套接字损坏或已关闭）时循环退出，错误可由 Err 取得。
type Runner struct {
	target   Updater
	interval time.Duration
	burst    int
	clk      clock.Clock

	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}

	errMu sync.Mutex
	err   error
}

// NewRunner 创建轮询循环
func NewRunner(target Updater, interval time.Duration, opts ...Option) *Runner {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	o := buildOptions(opts)
	return &Runner{
		target:   target,
		interval: interval,
		burst:    DefaultBurst,
		clk:      o.clock,
		done:     make(chan struct{}),
	}
}

// Start 启动循环
func (r *Runner) Start() error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrRunnerStarted
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(r.done)
		r.loop(r.ctx)
	}()
	return nil
}

func (r *Runner) loop(ctx context.Context) {
	ticker := r.clk.Ticker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i := 0; i < r.burst; i++ {
				if err := r.target.Update(); err != nil {
					r.setErr(err)
					log.Warn("轮询循环退出", "error", err)
					return
				}
			}
		}
	}
}

// Done 循环退出时关闭
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Err 返回导致循环退出的错误
func (r *Runner) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

func (r *Runner) setErr(err error) {
	r.errMu.Lock()
	r.err = err
	r.errMu.Unlock()
}

// Stop 停止循环并等待退出，未启动时无副作用
func (r *Runner) Stop() {
	if !r.started.Load() || r.cancel == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
}

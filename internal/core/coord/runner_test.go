package coord

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpdater 计数的 Updater
type fakeUpdater struct {
	calls atomic.Int64

	// UpdateFunc 非空时返回其结果
	UpdateFunc func(n int64) error
}

func (u *fakeUpdater) Update() error {
	n := u.calls.Add(1)
	if u.UpdateFunc != nil {
		return u.UpdateFunc(n)
	}
	return nil
}

// TestRunner_Drives 测试循环周期性调用 Update
func TestRunner_Drives(t *testing.T) {
	u := &fakeUpdater{}
	r := NewRunner(u, time.Millisecond)

	require.NoError(t, r.Start())
	assert.ErrorIs(t, r.Start(), ErrRunnerStarted)

	assert.Eventually(t, func() bool { return u.calls.Load() >= 2*DefaultBurst }, 5*time.Second, time.Millisecond)

	r.Stop()
	n := u.calls.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, n, u.calls.Load())
	assert.NoError(t, r.Err())
}

// TestRunner_StopsOnError 测试 Update 出错时循环退出
func TestRunner_StopsOnError(t *testing.T) {
	boom := errors.New("broken")
	u := &fakeUpdater{
		UpdateFunc: func(n int64) error {
			if n == 3 {
				return boom
			}
			return nil
		},
	}
	r := NewRunner(u, time.Millisecond)
	require.NoError(t, r.Start())

	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not exit")
	}
	assert.ErrorIs(t, r.Err(), boom)
	assert.Equal(t, int64(3), u.calls.Load())
	r.Stop()
}

// TestRunner_StopWithoutStart 测试未启动时 Stop 无副作用
func TestRunner_StopWithoutStart(t *testing.T) {
	r := NewRunner(&fakeUpdater{}, 0)
	r.Stop()
	assert.Equal(t, DefaultPollInterval, r.interval)
}

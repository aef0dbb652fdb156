//go:build linux

package socket

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/dep2p/go-natlink/pkg/types"
)

// fakeAdvertiser 以 socketpair 模拟 BlueZ 转交连接
type fakeAdvertiser struct {
	conns       chan int
	advertised  []ServiceRecord
	withdrawn   int
	AdvertiseFn func(ServiceRecord) error
}

func newFakeAdvertiser() *fakeAdvertiser {
	return &fakeAdvertiser{conns: make(chan int, 1)}
}

func (f *fakeAdvertiser) Advertise(rec ServiceRecord) error {
	if f.AdvertiseFn != nil {
		if err := f.AdvertiseFn(rec); err != nil {
			return err
		}
	}
	f.advertised = append(f.advertised, rec)
	return nil
}

func (f *fakeAdvertiser) Withdraw() error {
	f.withdrawn++
	return nil
}

func (f *fakeAdvertiser) Connections() <-chan int { return f.conns }

// TestRadioSocket_HandedOverConnection 测试发布者转交的连接可以收发
func TestRadioSocket_HandedOverConnection(t *testing.T) {
	adv := newFakeAdvertiser()
	ln, err := NewRadioSocket(WithAdvertiser(adv), WithService(ServiceRecord{UUID: DefaultServiceUUID, Name: "test", Channel: 3}))
	require.NoError(t, err)

	require.NoError(t, ln.Listen())
	require.Len(t, adv.advertised, 1)
	assert.Equal(t, uint8(3), ln.Channel())

	conn, err := ln.Accept()
	require.NoError(t, err)
	assert.Nil(t, conn)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	peer := fds[1]
	adv.conns <- fds[0]

	conn, err = ln.Accept()
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, types.SocketConnected, conn.State())

	buf := make([]byte, 16)
	_, err = conn.Receive(buf)
	assert.ErrorIs(t, err, ErrWouldBlock)

	_, err = unix.Write(peer, []byte("hi"))
	require.NoError(t, err)
	var n int
	require.Eventually(t, func() bool {
		n, err = conn.Receive(buf)
		return err == nil
	}, time.Second, time.Millisecond)
	assert.Equal(t, "hi", string(buf[:n]))

	n, err = conn.Send([]byte("yo"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = unix.Read(peer, buf)
	require.NoError(t, err)
	assert.Equal(t, "yo", string(buf[:n]))

	// 对端关闭后进入 Broken
	require.NoError(t, unix.Close(peer))
	require.Eventually(t, func() bool {
		_, err = conn.Receive(buf)
		return errors.Is(err, ErrBroken)
	}, time.Second, time.Millisecond)
	assert.True(t, conn.IsBroken())
	require.NoError(t, conn.Close())

	require.NoError(t, ln.Close())
	assert.Equal(t, 1, adv.withdrawn)
}

func TestRadioSocket_AdvertiseFailure(t *testing.T) {
	adv := newFakeAdvertiser()
	adv.AdvertiseFn = func(ServiceRecord) error { return errors.New("no adapter") }

	ln, err := NewRadioSocket(WithAdvertiser(adv))
	require.NoError(t, err)

	err = ln.Listen()
	assert.ErrorIs(t, err, ErrBroken)
	assert.True(t, ln.IsBroken())
	assert.NoError(t, ln.Close())
}

func TestRadioSocket_ConnectInvalidAddr(t *testing.T) {
	s, err := NewRadioSocket()
	require.NoError(t, err)
	defer s.Close()

	assert.ErrorIs(t, s.Connect("not-an-address"), ErrInvalidBDAddr)
	assert.False(t, s.IsBroken())

	_, err = s.Accept()
	assert.ErrorIs(t, err, ErrNotListening)
}

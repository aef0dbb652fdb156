//go:build linux

package socket

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

const (
	bluezService       = "org.bluez"
	bluezManagerPath   = dbus.ObjectPath("/org/bluez")
	bluezProfileMgr    = "org.bluez.ProfileManager1"
	bluezProfileIface  = "org.bluez.Profile1"
	defaultProfilePath = dbus.ObjectPath("/org/natlink/radio")
)

// BlueZAdvertiser 通过 BlueZ ProfileManager1 发布 RFCOMM 服务记录
//
// BlueZ 为注册的 profile 持有监听套接字，新连接经 Profile1.NewConnection
// 以 fd 的形式转交，因此它同时实现 ConnectionSource。
type BlueZAdvertiser struct {
	conn  *dbus.Conn
	path  dbus.ObjectPath
	conns chan int

	mu         sync.Mutex
	registered bool
}

var (
	_ ServiceAdvertiser = (*BlueZAdvertiser)(nil)
	_ ConnectionSource  = (*BlueZAdvertiser)(nil)
)

// NewBlueZAdvertiser 连接系统总线
func NewBlueZAdvertiser() (*BlueZAdvertiser, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	return newBlueZAdvertiser(conn, defaultProfilePath), nil
}

func newBlueZAdvertiser(conn *dbus.Conn, path dbus.ObjectPath) *BlueZAdvertiser {
	return &BlueZAdvertiser{conn: conn, path: path, conns: make(chan int, 8)}
}

// Advertise 导出 Profile1 对象并注册 profile
func (b *BlueZAdvertiser) Advertise(rec ServiceRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.registered {
		return nil
	}
	if err := b.conn.Export(&profile{conns: b.conns}, b.path, bluezProfileIface); err != nil {
		return fmt.Errorf("export profile: %w", err)
	}

	opts := map[string]dbus.Variant{
		"Name":                  dbus.MakeVariant(rec.Name),
		"Role":                  dbus.MakeVariant("server"),
		"RequireAuthentication": dbus.MakeVariant(false),
		"RequireAuthorization":  dbus.MakeVariant(false),
		"AutoConnect":           dbus.MakeVariant(false),
	}
	if rec.Channel != 0 {
		opts["Channel"] = dbus.MakeVariant(uint16(rec.Channel))
	}

	obj := b.conn.Object(bluezService, bluezManagerPath)
	if err := obj.Call(bluezProfileMgr+".RegisterProfile", 0, b.path, rec.UUID, opts).Err; err != nil {
		_ = b.conn.Export(nil, b.path, bluezProfileIface)
		return fmt.Errorf("register profile: %w", err)
	}
	b.registered = true
	log.Debug("BlueZ Profile 已注册", "path", b.path, "uuid", rec.UUID)
	return nil
}

// Withdraw 注销 profile
func (b *BlueZAdvertiser) Withdraw() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.registered {
		return nil
	}
	b.registered = false
	obj := b.conn.Object(bluezService, bluezManagerPath)
	err := obj.Call(bluezProfileMgr+".UnregisterProfile", 0, b.path).Err
	_ = b.conn.Export(nil, b.path, bluezProfileIface)
	return err
}

// Connections BlueZ 转交的已连接 fd
func (b *BlueZAdvertiser) Connections() <-chan int {
	return b.conns
}

// Close 注销 profile 并关闭总线连接
func (b *BlueZAdvertiser) Close() error {
	err := b.Withdraw()
	if cerr := b.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// profile 导出到总线的 org.bluez.Profile1 实现
type profile struct {
	conns chan int
}

func (p *profile) Release() *dbus.Error {
	return nil
}

func (p *profile) NewConnection(dev dbus.ObjectPath, fd dbus.UnixFD, _ map[string]dbus.Variant) *dbus.Error {
	select {
	case p.conns <- int(fd):
		log.Debug("BlueZ 移交新连接", "device", dev)
	default:
		log.Warn("接受队列已满，丢弃 BlueZ 连接", "device", dev)
		_ = unix.Close(int(fd))
	}
	return nil
}

func (p *profile) RequestDisconnection(dev dbus.ObjectPath) *dbus.Error {
	log.Debug("BlueZ 请求断开连接", "device", dev)
	return nil
}

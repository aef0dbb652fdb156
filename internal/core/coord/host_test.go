package coord

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natlink/pkg/interfaces"
	"github.com/dep2p/go-natlink/pkg/types"
)

var _ interfaces.Store = (*fakeStore)(nil)

// fakeStore 记录调用的存储
type fakeStore struct {
	ConnectFunc       func(path string) error
	GenerateTableFunc func(name string, fields []types.TableField) error
	RunSQLFunc        func(query string) ([]types.Row, error)
	QueryFunc         func(query string) ([]types.Row, error)

	connected string
	table     string
	execs     []fakeExec
	closed    int
}

type fakeExec struct {
	query string
	args  []any
}

func (s *fakeStore) Connect(path string) error {
	s.connected = path
	if s.ConnectFunc != nil {
		return s.ConnectFunc(path)
	}
	return nil
}

func (s *fakeStore) GenerateTable(name string, fields []types.TableField) error {
	s.table = name
	if s.GenerateTableFunc != nil {
		return s.GenerateTableFunc(name, fields)
	}
	return nil
}

func (s *fakeStore) RunSQL(query string, fn interfaces.RowFunc, args ...any) ([]types.Row, error) {
	if s.RunSQLFunc == nil {
		return nil, nil
	}
	rows, err := s.RunSQLFunc(query)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if fn != nil {
			fn(r)
		}
	}
	return rows, nil
}

func (s *fakeStore) Query(query string, fn interfaces.RowFunc) ([]types.Row, error) {
	if s.QueryFunc == nil {
		return nil, nil
	}
	rows, err := s.QueryFunc(query)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if fn != nil {
			fn(r)
		}
	}
	return rows, nil
}

func (s *fakeStore) Exec(query string, args ...any) (int64, error) {
	s.execs = append(s.execs, fakeExec{query: query, args: args})
	return 1, nil
}

func (s *fakeStore) Close() error {
	s.closed++
	return nil
}

type hostFixture struct {
	host   *Host
	store  *fakeStore
	clk    *clock.Mock
	conn   *memConn
	client *memConn
}

func newHostFixture(t *testing.T, fs *fakeStore) *hostFixture {
	t.Helper()
	if fs == nil {
		fs = &fakeStore{}
	}
	mn := newMemNet()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))

	cfg := DefaultHostConfig()
	cfg.Schema = idNameSchema

	conn := mn.listen(ep(1, 9000))
	h, err := NewHost(cfg, fs, WithConn(conn), WithClock(clk))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	return &hostFixture{host: h, store: fs, clk: clk, conn: conn, client: mn.listen(ep(2, 40000))}
}

func (f *hostFixture) send(t *testing.T, payload string) {
	t.Helper()
	_, err := f.client.SendTo(f.conn.local, []byte(payload))
	require.NoError(t, err)
}

func (f *hostFixture) reply(t *testing.T) (Reply, bool) {
	t.Helper()
	d, ok := f.client.pop()
	if !ok {
		return Reply{}, false
	}
	r, err := DecodeReply(d.data)
	require.NoError(t, err)
	return r, true
}

// TestNewHost 测试主机构造时打开存储并建表
func TestNewHost(t *testing.T) {
	f := newHostFixture(t, nil)

	assert.Equal(t, DefaultStorePath, f.store.connected)
	assert.Equal(t, DefaultTable, f.store.table)
	assert.Equal(t, ep(1, 9000), f.host.LocalEndpoint())
	assert.False(t, f.host.IsConnected())
}

// TestNewHost_StoreFailure 测试建表失败时关闭存储
func TestNewHost_StoreFailure(t *testing.T) {
	fs := &fakeStore{
		GenerateTableFunc: func(string, []types.TableField) error { return errors.New("disk full") },
	}
	_, err := NewHost(DefaultHostConfig(), fs, WithConn(newMemNet().listen(ep(1, 1))))
	assert.Error(t, err)
	assert.Equal(t, 1, fs.closed)
}

// TestHost_Upsert 测试推送记录生成的写入语句
func TestHost_Upsert(t *testing.T) {
	f := newHostFixture(t, nil)

	f.send(t, `{"id":"7","name":"bob"}`)
	require.NoError(t, f.host.Update())

	require.Len(t, f.store.execs, 1)
	assert.Equal(t, "REPLACE INTO clients(id, name) VALUES(?, ?);", f.store.execs[0].query)
	assert.Equal(t, []any{int64(7), "bob"}, f.store.execs[0].args)

	r, ok := f.reply(t)
	require.True(t, ok)
	assert.Equal(t, "2024-05-06 07:08:09", r.ServerTime)
	assert.Empty(t, r.Result)

	assert.True(t, f.host.IsConnected())
	assert.Equal(t, Stats{Received: 1, Sent: 1}, f.host.Stats())
}

// TestHost_UpdateDrainsOne 测试每次 Update 只处理一个数据报
func TestHost_UpdateDrainsOne(t *testing.T) {
	f := newHostFixture(t, nil)

	f.send(t, `{"id":"1"}`)
	f.send(t, `{"id":"2"}`)

	require.NoError(t, f.host.Update())
	assert.Len(t, f.store.execs, 1)
	assert.Equal(t, 1, f.conn.pending())

	require.NoError(t, f.host.Update())
	assert.Len(t, f.store.execs, 2)

	// 没有数据时不报错
	require.NoError(t, f.host.Update())
	assert.Len(t, f.store.execs, 2)
}

// TestHost_UnknownFields 测试没有已知字段时只回复时间
func TestHost_UnknownFields(t *testing.T) {
	f := newHostFixture(t, nil)

	f.send(t, `{"color":"red"}`)
	require.NoError(t, f.host.Update())

	assert.Empty(t, f.store.execs)
	r, ok := f.reply(t)
	require.True(t, ok)
	assert.NotEmpty(t, r.ServerTime)
}

// TestHost_MalformedDropped 测试格式错误的数据报被丢弃且不回复
func TestHost_MalformedDropped(t *testing.T) {
	f := newHostFixture(t, nil)

	for _, payload := range []string{`not json`, `{"SQL":"%%%"}`, `{"id":[1]}`} {
		f.send(t, payload)
		require.NoError(t, f.host.Update())
	}

	assert.Empty(t, f.store.execs)
	_, ok := f.reply(t)
	assert.False(t, ok)
	assert.Equal(t, uint64(3), f.host.Stats().Dropped)
	assert.False(t, f.host.IsConnected())
}

// TestHost_RemoteQuery 测试远端查询走只读路径并回复结果行
func TestHost_RemoteQuery(t *testing.T) {
	var gotQuery string
	fs := &fakeStore{
		RunSQLFunc: func(q string) ([]types.Row, error) {
			t.Fatalf("remote query reached the writable path: %q", q)
			return nil, nil
		},
		QueryFunc: func(q string) ([]types.Row, error) {
			gotQuery = q
			return []types.Row{{"id": "7", "name": "bob"}}, nil
		},
	}
	f := newHostFixture(t, fs)

	b, err := EncodeQuery("SELECT * FROM clients;")
	require.NoError(t, err)
	f.send(t, string(b))
	require.NoError(t, f.host.Update())

	assert.Equal(t, "SELECT * FROM clients;", gotQuery)
	r, ok := f.reply(t)
	require.True(t, ok)
	assert.Equal(t, []types.Row{{"id": "7", "name": "bob"}}, r.Result)
}

// TestHost_RemoteQueryFailure 测试查询失败时只回复时间
func TestHost_RemoteQueryFailure(t *testing.T) {
	fs := &fakeStore{
		QueryFunc: func(string) ([]types.Row, error) { return nil, errors.New("no such table") },
	}
	f := newHostFixture(t, fs)

	b, err := EncodeQuery("SELECT * FROM nowhere;")
	require.NoError(t, err)
	f.send(t, string(b))
	require.NoError(t, f.host.Update())

	d, ok := f.client.pop()
	require.True(t, ok)
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(d.data, &m))
	assert.Contains(t, m, FieldServerTime)
	assert.NotContains(t, m, FieldSQLResult)
}

// TestHost_SQLRequestLocal 测试主机本地查询不产生流量
func TestHost_SQLRequestLocal(t *testing.T) {
	calls := 0
	fs := &fakeStore{
		RunSQLFunc: func(q string) ([]types.Row, error) {
			calls++
			if calls == 1 {
				return nil, nil
			}
			return []types.Row{{"id": "1"}}, nil
		},
	}
	f := newHostFixture(t, fs)

	var got [][]types.Row
	f.host.SetResponseHandler(func(rows []types.Row) { got = append(got, rows) })

	require.NoError(t, f.host.SQLRequest("SELECT * FROM clients WHERE id = 0;"))
	require.NoError(t, f.host.SQLRequest("SELECT * FROM clients;"))

	require.Len(t, got, 2)
	assert.Empty(t, got[0])
	assert.NotNil(t, got[0])
	assert.Equal(t, []types.Row{{"id": "1"}}, got[1])
	assert.Zero(t, f.host.Stats().Sent)
}

// TestHost_IsConnectedWindow 测试主机存活窗口
func TestHost_IsConnectedWindow(t *testing.T) {
	f := newHostFixture(t, nil)

	f.send(t, `{"id":"1"}`)
	require.NoError(t, f.host.Update())
	assert.True(t, f.host.IsConnected())

	f.clk.Add(DefaultLivenessWindow)
	assert.True(t, f.host.IsConnected())

	f.clk.Add(time.Millisecond)
	assert.False(t, f.host.IsConnected())
}

// TestHost_Close 测试关闭后不可用
func TestHost_Close(t *testing.T) {
	f := newHostFixture(t, nil)

	require.NoError(t, f.host.Close())
	require.NoError(t, f.host.Close())

	assert.Equal(t, 1, f.store.closed)
	assert.ErrorIs(t, f.host.Update(), ErrClosed)
	assert.ErrorIs(t, f.host.SQLRequest("SELECT 1;"), ErrClosed)
}

// TestHostConfig_Validate 测试主机配置验证
func TestHostConfig_Validate(t *testing.T) {
	cfg := DefaultHostConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Schema = nil
	assert.ErrorIs(t, cfg.Validate(), ErrEmptySchema)

	cfg = DefaultHostConfig()
	cfg.Table = ""
	assert.Error(t, cfg.Validate())
}

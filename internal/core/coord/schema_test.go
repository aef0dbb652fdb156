package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natlink/pkg/types"
)

var idNameSchema = []types.TableField{
	{Name: "id", Kind: types.FieldDirect},
	{Name: "name", Kind: types.FieldQuoted},
}

// TestSchema_BuildUpsert 测试只给 Quoted 字段加引号
func TestSchema_BuildUpsert(t *testing.T) {
	s, err := NewSchema(idNameSchema)
	require.NoError(t, err)

	u, err := s.BuildUpsert("clients", Record{"id": "7", "name": "bob"})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, u.Columns)
	assert.Equal(t, "REPLACE INTO clients(id, name) VALUES(?, ?);", u.SQL())
	assert.Equal(t, "REPLACE INTO clients(id, name) VALUES(7, 'bob');", u.Literal())
	assert.Equal(t, []any{int64(7), "bob"}, u.Args)
}

// TestSchema_BuildUpsertOrder 测试按表结构顺序生成列
func TestSchema_BuildUpsertOrder(t *testing.T) {
	s, err := NewSchema([]types.TableField{
		{Name: "name", Kind: types.FieldQuoted},
		{Name: "sdp", Kind: types.FieldQuoted},
		{Name: "id", Kind: types.FieldDirect},
	})
	require.NoError(t, err)

	u, err := s.BuildUpsert("clients", Record{"id": "1", "name": "x", "extra": "y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "id"}, u.Columns)
	assert.Equal(t, []string{"extra"}, s.Unknown(Record{"id": "1", "extra": "y"}))
}

// TestSchema_BindValues 测试 Direct 值的绑定类型
func TestSchema_BindValues(t *testing.T) {
	tests := []struct {
		value string
		want  any
	}{
		{"42", int64(42)},
		{"-3", int64(-3)},
		{"2.5", 2.5},
		{"NaN", "NaN"},
		{"abc", "abc"},
		{"", ""},
	}
	s, err := NewSchema(idNameSchema)
	require.NoError(t, err)

	for _, tt := range tests {
		u, err := s.BuildUpsert("t", Record{"id": tt.value})
		require.NoError(t, err)
		assert.Equal(t, tt.want, u.Args[0], "value %q", tt.value)
	}
}

// TestSchema_LiteralEscape 测试字面量转义
func TestSchema_LiteralEscape(t *testing.T) {
	s, err := NewSchema(idNameSchema)
	require.NoError(t, err)

	u, err := s.BuildUpsert("clients", Record{"id": "1", "name": "o'neil"})
	require.NoError(t, err)
	assert.Equal(t, "REPLACE INTO clients(id, name) VALUES(1, 'o''neil');", u.Literal())
	assert.Equal(t, "o'neil", u.Args[1])
}

// TestSchema_Errors 测试表结构错误
func TestSchema_Errors(t *testing.T) {
	_, err := NewSchema(nil)
	assert.ErrorIs(t, err, ErrEmptySchema)

	_, err = NewSchema([]types.TableField{{Name: "id"}, {Name: "id"}})
	assert.ErrorIs(t, err, ErrDuplicateField)

	s, err := NewSchema(idNameSchema)
	require.NoError(t, err)
	_, err = s.BuildUpsert("clients", Record{"other": "1"})
	assert.ErrorIs(t, err, ErrNoKnownFields)

	kind, ok := s.Kind("name")
	assert.True(t, ok)
	assert.Equal(t, types.FieldQuoted, kind)
	_, ok = s.Kind("missing")
	assert.False(t, ok)
}

// TestSchema_Immutable 测试表结构不受外部修改影响
func TestSchema_Immutable(t *testing.T) {
	fields := []types.TableField{{Name: "id", Kind: types.FieldDirect}}
	s, err := NewSchema(fields)
	require.NoError(t, err)

	fields[0].Name = "changed"
	got := s.Fields()
	got[0].Kind = types.FieldQuoted

	assert.Equal(t, []types.TableField{{Name: "id", Kind: types.FieldDirect}}, s.Fields())
}

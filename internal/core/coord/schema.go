package coord

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dep2p/go-natlink/pkg/types"
)

// Schema 主机表结构
//
// 构造后不可变，字段顺序即每条 REPLACE 语句的列顺序。
type Schema struct {
	fields []types.TableField
	index  map[string]int
}

// NewSchema 创建表结构
func NewSchema(fields []types.TableField) (*Schema, error) {
	if len(fields) == 0 {
		return nil, ErrEmptySchema
	}
	s := &Schema{
		fields: make([]types.TableField, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)
	for i, f := range s.fields {
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateField, f.Name)
		}
		s.index[f.Name] = i
	}
	return s, nil
}

// Fields 返回字段列表副本
func (s *Schema) Fields() []types.TableField {
	out := make([]types.TableField, len(s.fields))
	copy(out, s.fields)
	return out
}

// Kind 返回字段类型
func (s *Schema) Kind(name string) (types.FieldKind, bool) {
	i, ok := s.index[name]
	if !ok {
		return 0, false
	}
	return s.fields[i].Kind, true
}

// BuildUpsert 为推送记录生成 REPLACE 语句
//
// 只取记录中出现在表结构里的字段，按表结构顺序排列；未知字段被忽略。
func (s *Schema) BuildUpsert(table string, rec Record) (Upsert, error) {
	u := Upsert{Table: table}
	for _, f := range s.fields {
		v, ok := rec[f.Name]
		if !ok {
			continue
		}
		u.Columns = append(u.Columns, f.Name)
		u.Kinds = append(u.Kinds, f.Kind)
		u.Values = append(u.Values, v)
		u.Args = append(u.Args, bindValue(f.Kind, v))
	}
	if len(u.Columns) == 0 {
		return Upsert{}, ErrNoKnownFields
	}
	return u, nil
}

// Unknown 返回记录中不在表结构里的字段名
func (s *Schema) Unknown(rec Record) []string {
	var out []string
	for k := range rec {
		if _, ok := s.index[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// ============================================================================
//                              Upsert
// ============================================================================

// Upsert 一条 REPLACE INTO 语句
type Upsert struct {
	Table   string
	Columns []string
	Kinds   []types.FieldKind
	Values  []string

	// Args 绑定参数，与 Columns 一一对应
	Args []any
}

// SQL 返回参数化语句
//
//	REPLACE INTO clients(id, name) VALUES(?, ?);
func (u Upsert) SQL() string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(u.Columns)), ", ")
	return fmt.Sprintf("REPLACE INTO %s(%s) VALUES(%s);", u.Table, strings.Join(u.Columns, ", "), marks)
}

// Literal 返回字面量形式，仅用于日志
//
//	REPLACE INTO clients(id, name) VALUES(7, 'bob');
func (u Upsert) Literal() string {
	vals := make([]string, len(u.Values))
	for i, v := range u.Values {
		if u.Kinds[i] == types.FieldDirect {
			vals[i] = v
		} else {
			vals[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
		}
	}
	return fmt.Sprintf("REPLACE INTO %s(%s) VALUES(%s);", u.Table, strings.Join(u.Columns, ", "), strings.Join(vals, ", "))
}

// bindValue Direct 值能解析为数字时按数字绑定，否则按文本
func bindValue(kind types.FieldKind, v string) any {
	if kind != types.FieldDirect {
		return v
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	return v
}

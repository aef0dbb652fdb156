package types

import (
	"fmt"
	"strings"
)

// Row 查询结果的一行：列名 → 文本值，NULL 列不出现
type Row map[string]string

// TableField 表结构中的一列
type TableField struct {
	Name string    `json:"name"`
	Kind FieldKind `json:"kind"`
}

// ParseTableFields 解析 "id:direct,name:quoted" 形式的字段列表
//
// 省略类型时按 quoted 处理。
func ParseTableFields(s string) ([]TableField, error) {
	var fields []TableField
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, kind, _ := strings.Cut(part, ":")
		k, ok := ParseFieldKind(strings.TrimSpace(kind))
		if !ok {
			return nil, fmt.Errorf("field %q: unknown kind %q", name, kind)
		}
		fields = append(fields, TableField{Name: strings.TrimSpace(name), Kind: k})
	}
	return fields, nil
}

// MarshalText 实现 encoding.TextMarshaler
func (k FieldKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (k *FieldKind) UnmarshalText(b []byte) error {
	v, ok := ParseFieldKind(string(b))
	if !ok {
		return fmt.Errorf("unknown field kind %q", b)
	}
	*k = v
	return nil
}

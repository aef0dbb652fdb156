package coord

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dep2p/go-natlink/pkg/types"
)

// ============================================================================
//                              协议常量
// ============================================================================

const (
	// FieldSQL 查询记录字段，值为 base64 编码的查询文本
	FieldSQL = "SQL"

	// FieldServerTime 主机回复中的主机时间
	FieldServerTime = "SERVERTIME"

	// FieldSQLResult 主机回复中的结果行
	FieldSQLResult = "SQLRESULT"

	// ServerTimeLayout SERVERTIME 的格式（UTC）
	ServerTimeLayout = "2006-01-02 15:04:05"

	// MaxPayloadSize 单个出站数据报的最大字节数
	//
	// 低于常见路径 MTU（1280 字节的 IPv6 最小 MTU 减去 IP/UDP 头），避免分片。
	MaxPayloadSize = 1200

	// readBufferSize 入站读缓冲，超过 MaxPayloadSize 的数据报被丢弃
	readBufferSize = 10 * 1024
)

// IsReservedKey 判断键名是否为协议字段
func IsReservedKey(key string) bool {
	return key == FieldSQL || key == FieldServerTime || key == FieldSQLResult
}

// FormatServerTime 格式化主机时间
func FormatServerTime(t time.Time) string {
	return t.UTC().Format(ServerTimeLayout)
}

// ParseServerTime 解析主机时间
func ParseServerTime(s string) (time.Time, error) {
	return time.ParseInLocation(ServerTimeLayout, s, time.UTC)
}

// ============================================================================
//                              消息类型
// ============================================================================

// Record 客户端推送的键值记录
type Record map[string]string

// Clone 返回副本
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Reply 主机回复
type Reply struct {
	ServerTime string      `json:"SERVERTIME,omitempty"`
	Result     []types.Row `json:"SQLRESULT,omitempty"`
}

// request 主机解析出的入站请求
type request struct {
	isQuery bool
	query   string
	record  Record
}

// ============================================================================
//                              编码
// ============================================================================

// EncodeRecord 编码推送记录
func EncodeRecord(rec Record) ([]byte, error) {
	if rec == nil {
		rec = Record{}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if len(b) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: record is %d bytes", ErrPayloadTooLarge, len(b))
	}
	return b, nil
}

// EncodeQuery 编码查询记录，查询文本按标准 base64 编码
func EncodeQuery(text string) ([]byte, error) {
	b, err := json.Marshal(map[string]string{
		FieldSQL: base64.StdEncoding.EncodeToString([]byte(text)),
	})
	if err != nil {
		return nil, err
	}
	if len(b) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: query is %d bytes", ErrPayloadTooLarge, len(b))
	}
	return b, nil
}

// encodeReply 编码主机回复
//
// 结果行按顺序放入，放不下的行被截掉；返回被截掉的行数。
func encodeReply(now time.Time, rows []types.Row) ([]byte, int, error) {
	r := Reply{ServerTime: FormatServerTime(now)}
	head, err := json.Marshal(r)
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return head, 0, nil
	}

	// {"SERVERTIME":"..."} → {"SERVERTIME":"...","SQLRESULT":[r1,r2]}
	size := len(head) + len(`,"SQLRESULT":[]`)
	fit := 0
	for i, row := range rows {
		b, err := json.Marshal(row)
		if err != nil {
			return nil, 0, err
		}
		need := len(b)
		if i > 0 {
			need++
		}
		if size+need > MaxPayloadSize {
			break
		}
		size += need
		fit++
	}
	if fit == 0 {
		return head, len(rows), nil
	}

	r.Result = rows[:fit]
	b, err := json.Marshal(r)
	if err != nil {
		return nil, 0, err
	}
	return b, len(rows) - fit, nil
}

// ============================================================================
//                              解码
// ============================================================================

// decodeRequest 解析主机收到的数据报
//
// 含 SQL 字段的是查询，其余按推送记录处理。值可以是字符串、数字或布尔，
// 嵌套对象和数组视为格式错误。
func decodeRequest(b []byte) (request, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return request{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if raw == nil {
		return request{}, ErrMalformedRecord
	}

	if v, ok := raw[FieldSQL]; ok {
		s, ok := v.(string)
		if !ok {
			return request{}, ErrMalformedQuery
		}
		q, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return request{}, fmt.Errorf("%w: %v", ErrMalformedQuery, err)
		}
		return request{isQuery: true, query: string(q)}, nil
	}

	rec := make(Record, len(raw))
	for k, v := range raw {
		switch x := v.(type) {
		case string:
			rec[k] = x
		case json.Number:
			rec[k] = x.String()
		case bool:
			rec[k] = strconv.FormatBool(x)
		case nil:
		default:
			return request{}, fmt.Errorf("%w: field %q is not a scalar", ErrMalformedRecord, k)
		}
	}
	return request{record: rec}, nil
}

// DecodeReply 解析客户端收到的主机回复
func DecodeReply(b []byte) (Reply, error) {
	var r Reply
	if err := json.Unmarshal(b, &r); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return r, nil
}

// Package coord 实现基于 UDP 的主机/客户端协调协议
//
// 一个主机（Host）持有结构化存储和固定表结构，多个客户端（Client）
// 周期性推送自己的键值记录，并可以向主机发起临时查询。
//
// # 角色
//
//   - Host：绑定已知端口，每次 Update 处理至多一个数据报，只回复、从不主动发送
//   - Client：指向主机端点，每 2 秒推送完整键值集合，6 秒内收到 SERVERTIME 视为连通
//
// # 线路格式
//
// 每个数据报是一个扁平 JSON 对象，单个消息不跨数据报：
//
//	Client→Host 推送: {"id": "7", "name": "bob"}
//	Client→Host 查询: {"SQL": "<base64(text)>"}
//	Host→Client 回复: {"SERVERTIME": "2006-01-02 15:04:05", "SQLRESULT": [{...}]}
//
// 出站消息不超过 MaxPayloadSize 字节。
//
// # 写入
//
// 推送记录按主机表结构的字段顺序生成 REPLACE INTO 语句，值通过参数绑定写入：
// Direct 字段能解析为数字时按数字绑定，Quoted 字段按文本绑定。
//
// # 调度
//
// 协议本身不启动任何 goroutine，由调用方循环调用 Update；Runner 提供
// 一个按固定间隔驱动 Update 的后台循环，供 CLI 和 Fx 模块使用。
package coord

// Package store 提供协调主机使用的结构化存储
//
// 存储基于 SQLite（modernc.org/sqlite，纯 Go 实现），只承载一张小表：
// 每个已知客户端一行，第一个字段作为主键，REPLACE 语义按客户端身份覆盖。
//
// # 使用约束
//
// Store 由协调主机独占使用，所有操作都在主机的 Update / SQLRequest
// 调用中同步完成，实现本身不做并发协调。
//
// 查询结果以 types.Row（列名到字符串值）的形式返回，NULL 列被省略。
package store

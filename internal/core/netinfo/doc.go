// Package netinfo 提供本机网络信息发现
//
// Discover 返回一次性的发现结果（主机名和 IPv4 网卡地址），由调用方持有，
// 传给需要绑定套接字或发布地址的组件；不存在进程级的全局实例。
//
// STUNClient 通过 STUN Binding 请求获取本机在 NAT 外的映射地址，
// 结果缓存一段时间。
package netinfo

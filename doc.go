// Package natlink 组装 NAT 穿透连通性组件
//
// natlink 让位于 NAT 之后的两个进程互相发现、建立双向通道，并交换少量
// 结构化状态。组件按角色加载：
//
//   - RoleHost: 协调主机，在本地 SQLite 表中登记客户端推送的记录并回答查询
//   - RoleClient: 协调客户端，周期推送自己的键值并转发查询
//   - RoleNone: 只加载 ICE 会话工厂与主机发现
//
// 快速开始：
//
//	cfg := config.NewConfig()
//	cfg.Coord.HostEndpoint = "203.0.113.7:9000"
//
//	app, err := natlink.New(natlink.WithConfig(cfg), natlink.WithRole(natlink.RoleClient))
//	if err != nil {
//	    return err
//	}
//	if err := app.Start(ctx); err != nil {
//	    return err
//	}
//	defer app.Stop(context.Background())
//
//	app.Client().SetKey("name", "alice")
//
// 协调端的 Update 由后台轮询循环驱动；ICE 会话由 app.NAT().NewSession() 创建，
// 由调用方轮询 IsReady / IsConnected / HasProblem。
package natlink

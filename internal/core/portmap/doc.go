// Package portmap 在网关上映射协调主机的端口
//
// 发现顺序为 UPnP IGD（IGDv2 优先，回退 IGDv1），再 NAT-PMP。
// 映射租期到 2/3 时由续期循环重新映射；Close 删除全部映射。
//
//	m, err := portmap.Discover(ctx, cfg, localIP)
//	mapping, err := m.MapPort(ctx, portmap.UDP, 9000)
//	m.Start()
//	defer m.Close(ctx)
package portmap

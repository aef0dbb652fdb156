// Package metrics 提供流量统计
//
// BandwidthCounter 按套接字类别（udp、tcp、rfcomm、ice）统计收发字节，
// 并维护 60 秒滑动窗口速率：
//
//	bwc := metrics.NewBandwidthCounter(nil)
//	sock, _ := socket.NewDatagramSocket(socket.WithBandwidth(bwc))
//
//	st := bwc.ForKind("udp")
//	fmt.Printf("out=%d rate=%.1fB/s\n", st.TotalOut, st.RateOut)
//
// Collector 把统计导出为 prometheus 指标，Handler 提供 /metrics。
package metrics

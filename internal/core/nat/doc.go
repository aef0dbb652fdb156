// Package nat 实现基于 ICE 的连通性会话
//
// # 模块概述
//
// 一个 Session 持有一个 ICE 代理（pion/ice），负责：
//   - 收集本地候选，生成可以带外传递给对端的描述（SDP 文本及其 base64 形式）
//   - 应用对端描述（只生效一次），开始连通性检查
//   - 在选定的候选对上收发数据报
//
// # 状态
//
//	Gathering → (候选事件) → 收集完成 → Connecting → Connected | Completed
//	                                           └──────→ Failed
//
// IsReady 报告收集是否完成；HasProblem 在 Failed，或设置远端描述后
// 超过 ConnectTimeout 仍处于 Connecting 时为真。会话不会自我修复，
// 出现问题时由调用方丢弃并重建。
//
// # 快速开始
//
//	s, err := nat.NewSession(nat.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	for !s.IsReady() {
//	    time.Sleep(10 * time.Millisecond)
//	}
//	publish(s.LocalDescriptionBase64()) // 例如通过协调协议
//
//	_ = s.SetRemoteDescriptionBase64(remote)
//	for !s.IsConnected() && !s.HasProblem() {
//	    time.Sleep(10 * time.Millisecond)
//	}
//
// # 并发
//
// 代理回调运行在代理内部的 goroutine 上，只做入队和状态记录；
// 入站数据进入一个有上限的缓冲，由调用方通过 Receive 取走。
package nat

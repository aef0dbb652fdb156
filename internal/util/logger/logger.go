// Package logger 提供 natlink 的统一日志系统
//
// 基于标准库 log/slog，每个子系统持有自己的 Logger：
//
//	var log = logger.Logger("coord")
//
//	log.Info("客户端已登记", "from", ep, "fields", n)
//	log.Debug("丢弃数据报", "reason", "oversize", "len", n)
//
// 级别与格式由环境变量或命令行配置:
//
//	# socket 子系统为 debug，其余为 info
//	NATLINK_LOG_LEVEL=socket=debug,info
//
//	# JSON 输出
//	NATLINK_LOG_FORMAT=json
//
// pion 组件（ICE agent）通过 PionFactory 接入同一输出。
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 各子系统的 Logger 缓存
	loggers sync.Map // map[string]*slog.Logger

	// handlers 各子系统的 Handler，用于运行时调整级别
	handlers sync.Map // map[string]*subsystemHandler
)

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回同一实例；级别来自 NATLINK_LOG_LEVEL 或 Configure。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := currentConfig()
	h := newHandler(subsystem, cfg.LevelForSubsystem(subsystem), cfg.AddSource)
	actual, loaded := loggers.LoadOrStore(subsystem, slog.New(h))
	if !loaded {
		handlers.Store(subsystem, h)
	}
	return actual.(*slog.Logger)
}

// Configure 在运行时应用级别与格式配置
//
// levels 与 NATLINK_LOG_LEVEL 同格式，空串表示保持不变；format 为 "text" 或 "json"，
// 空串表示保持不变。已创建的 Logger 立即生效。
func Configure(levels, format string) {
	cfg := currentConfig().clone()
	if levels != "" {
		cfg.SubsystemLevels = make(map[string]slog.Level)
		parseLevelConfig(cfg, levels)
	}
	if format != "" {
		cfg.Format = parseFormat(format)
	}
	storeConfig(cfg)

	handlers.Range(func(key, value any) bool {
		value.(*subsystemHandler).SetLevel(cfg.LevelForSubsystem(key.(string)))
		return true
	})
}

// SetLevel 动态设置子系统的日志级别
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).SetLevel(level)
	}
}

// Discard 返回丢弃所有日志的 Logger，用于测试
func Discard() *slog.Logger {
	return slog.New(DiscardHandler())
}

// SetOutput 设置全局日志输出目标
//
// 已创建的 Logger 也会写到新的目标。
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}

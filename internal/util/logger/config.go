package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogFormat 日志输出格式
type LogFormat int

const (
	// FormatText 文本格式（默认）
	FormatText LogFormat = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// 环境变量
const (
	EnvLevel     = "NATLINK_LOG_LEVEL"
	EnvFormat    = "NATLINK_LOG_FORMAT"
	EnvAddSource = "NATLINK_LOG_ADD_SOURCE"
)

// Config 日志配置
type Config struct {
	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// SubsystemLevels 各子系统的日志级别
	SubsystemLevels map[string]slog.Level

	// Format 输出格式
	Format LogFormat

	// AddSource 是否添加源码位置
	AddSource bool
}

// LevelForSubsystem 获取指定子系统的日志级别
func (c *Config) LevelForSubsystem(subsystem string) slog.Level {
	if level, ok := c.SubsystemLevels[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

func (c *Config) clone() *Config {
	out := *c
	out.SubsystemLevels = make(map[string]slog.Level, len(c.SubsystemLevels))
	for k, v := range c.SubsystemLevels {
		out.SubsystemLevels[k] = v
	}
	return &out
}

var (
	configMu    sync.RWMutex
	configCache *Config
)

// ConfigFromEnv 从环境变量解析配置
//
//   - NATLINK_LOG_LEVEL: 子系统=级别,...,默认级别，例如 coord=debug,warn
//   - NATLINK_LOG_FORMAT: text 或 json
//   - NATLINK_LOG_ADD_SOURCE: true 或 false
func ConfigFromEnv() *Config {
	cfg := &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}
	if s := os.Getenv(EnvLevel); s != "" {
		parseLevelConfig(cfg, s)
	}
	if s := os.Getenv(EnvFormat); s != "" {
		cfg.Format = parseFormat(s)
	}
	if s := os.Getenv(EnvAddSource); s != "" {
		cfg.AddSource = s != "false" && s != "0"
	}
	return cfg
}

func currentConfig() *Config {
	configMu.RLock()
	cfg := configCache
	configMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	configMu.Lock()
	defer configMu.Unlock()
	if configCache == nil {
		configCache = ConfigFromEnv()
	}
	return configCache
}

func storeConfig(cfg *Config) {
	configMu.Lock()
	configCache = cfg
	configMu.Unlock()
}

// parseLevelConfig 解析 subsystem=level,...,defaultLevel
func parseLevelConfig(cfg *Config, levelStr string) {
	for _, part := range strings.Split(levelStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, lvl, found := strings.Cut(part, "=")
		if !found {
			if level, ok := ParseLevel(part); ok {
				cfg.DefaultLevel = level
			}
			continue
		}
		if level, ok := ParseLevel(strings.TrimSpace(lvl)); ok {
			cfg.SubsystemLevels[strings.TrimSpace(name)] = level
		}
	}
}

// ParseLevel 解析日志级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func parseFormat(s string) LogFormat {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// ResetConfig 重置配置缓存（仅用于测试）
func ResetConfig() {
	storeConfig(nil)
}

package config

import (
	"errors"
	"time"
)

// SocketConfig 套接字原语配置
type SocketConfig struct {
	// OSBufferSize 内核收发缓冲大小
	OSBufferSize int `json:"os_buffer_size"`

	// WorkerInterval 线程化套接字的工作周期
	WorkerInterval Duration `json:"worker_interval"`

	// ScratchSize 工作协程读取缓冲大小
	ScratchSize int `json:"scratch_size"`

	// WriteChunkSize 工作协程单次写入上限
	WriteChunkSize int `json:"write_chunk_size"`

	// ReadinessTimeout RadioSocket 就绪检查时长
	ReadinessTimeout Duration `json:"readiness_timeout"`

	// RadioChannel RadioSocket 连接时的 RFCOMM 通道
	RadioChannel uint8 `json:"radio_channel"`
}

// DefaultSocketConfig 返回默认套接字配置
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		OSBufferSize:     10 * 1024 * 1024,
		WorkerInterval:   Duration(time.Millisecond),
		ScratchSize:      256 * 1024,
		WriteChunkSize:   50000,
		ReadinessTimeout: Duration(50 * time.Microsecond),
		RadioChannel:     1,
	}
}

// Validate 验证套接字配置
func (c SocketConfig) Validate() error {
	if c.OSBufferSize < 0 {
		return errors.New("socket os buffer size must not be negative")
	}
	if c.WorkerInterval <= 0 {
		return errors.New("socket worker interval must be positive")
	}
	if c.ScratchSize <= 0 || c.WriteChunkSize <= 0 {
		return errors.New("socket scratch and write chunk sizes must be positive")
	}
	if c.RadioChannel == 0 || c.RadioChannel > 30 {
		return errors.New("radio channel must be within 1..30")
	}
	return nil
}

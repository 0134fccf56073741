// =============================================================================
// 📦 plangraph 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Engine:    DefaultEngineConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
		History:   DefaultHistoryConfig(),
	}
}

// DefaultEngineConfig 返回默认驱动循环配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxSteps:      1000,
		Timeout:       0,
		Parallelism:   4,
		FailurePolicy: "fail_fast",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "plangraph",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "plangraph",
		Addr:      ":9091",
	}
}

// DefaultHistoryConfig 返回默认历史存储配置
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Backend: "memory",
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "plangraph:",
			TTL:       7 * 24 * time.Hour,
		},
	}
}

// Package config 提供 plangraph 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序加载，
// 覆盖驱动循环、日志、遥测、Prometheus 指标与执行历史存储。
package config

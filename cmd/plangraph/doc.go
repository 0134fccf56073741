// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 plangraph 命令行程序入口。

# 概述

cmd/plangraph 解析 YAML/JSON 计划文档并驱动执行，支持计划校验、
拓扑序输出以及执行历史查询。程序按 默认值 → YAML 配置文件 → 环境变量
的顺序加载配置，使用 zap 结构化日志、OpenTelemetry 追踪与
Prometheus 指标。

# 子命令

  - run       执行计划，结果以 JSON 输出到 stdout
  - validate  解析并校验计划，列出全部校验错误
  - order     按拓扑序列出节点
  - history   从 memory/redis 历史存储查询运行记录
  - version   版本信息

# 运行时装配

  - 委托的重试与熔断事件通过解析器钩子计入 Prometheus 指标
  - 历史存储经 history.Observe 包装，记录每次存储操作的耗时
  - metrics.enabled 时启动运维服务器：/metrics、/healthz、/runs
  - 收到 SIGINT/SIGTERM 时取消运行，结果状态为 canceled
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main

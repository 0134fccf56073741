// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的计划执行指标采集能力，覆盖
运行、节点、委托与历史存储四个维度。

# 概述

Collector 实现 engine.MetricsRecorder，由执行器在每次运行、节点分发
与循环迭代时回调。指标通过 promauto.With 注册到调用方提供的
Registerer，测试与多实例场景可使用独立注册表。

# 主要能力

  - 运行指标：运行总数（按 workflow/status）、运行耗时、单次运行步数。
  - 节点指标：分发总数与耗时（按节点类型/状态）、循环迭代数、就绪节点数。
  - 委托指标：重试次数、熔断器状态，分别对接 dsl.WithRetryHook
    与 dsl.WithBreakerHook。
  - 历史存储指标：Save/Get/List/Delete 操作耗时，对接 history.Observe。
*/
package metrics

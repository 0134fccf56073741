// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package engine 实现计划图的驱动循环。

# 概述

Executor 接收一个已校验的 graph.Graph，反复取出就绪节点并分发给委托执行，
再把结果通过完成/失败转换写回图中，直到图完成、失败、步数预算耗尽或超时。

# 节点行为

  - Task：按节点的委托名（为空时使用节点 ID）解析委托，参数在分发时做 ${var} 插值
  - Decision：对条件求值，按结果标签选择分支（找不到时回退到 "default"），
    只有被选中的后继会继续执行，其余分支被剪枝
  - Loop：while 语义，每轮迭代前检查最大迭代次数与条件（loop_iteration 绑定为当前轮次），
    循环体可以是另一个循环，步数预算覆盖所有嵌套层级的分发

# 失败与终止

节点失败不会自动让后继失败；FailFast 策略在首个失败后停止，Continue 策略继续执行
其余可达节点。步数预算、超时与取消会以独立的状态终止运行，图保留在当时的部分状态。

# 可观测性

每次运行产生 plangraph.run span，每次分发产生 plangraph.node span，并通过 OTel
计数器 plangraph.node.dispatches 与可选的 MetricsRecorder 上报指标。
配置 history.Store 后，每次运行的节点级执行记录会在结束时保存。
*/
package engine

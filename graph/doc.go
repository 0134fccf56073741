// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package graph 提供工作流计划图的数据模型与状态机。

# 概述

graph 包是 plangraph 编排内核的最底层：节点（Task / Decision / Loop）、
有向边、节点状态机以及图级别的结构查询与就绪传播。图本身不执行任何 I/O，
也不会阻塞；执行由 engine 包中的驱动循环完成。

# 核心类型

  - Node：计划中的单个工作单元，携带 Kind 载荷与原子状态
  - Kind：封闭的和类型：Task、Decision、Loop
  - State：Pending → Ready → Running → Completed | Failed
  - Graph：节点竞技场（arena）+ 双向邻接索引
  - NodeInfo：监控用的节点快照

# 主要能力

  - 结构校验：初始节点、终止节点、孤立节点、环、分支与循环配置
  - 拓扑排序：显式栈的三色深度优先遍历，检测到环时返回 ErrCycleDetected
  - 就绪传播：基于 CAS 的 Pending → Ready 转换，汇合点不会被重复激活
  - 决策分支：只有被选中的分支目标可达，未选中的分支被剪枝（skipped）
  - 循环：循环体在每次迭代前被重置，并在循环结束前保持“挂起”状态
  - 进度：Progress 单调不减，IsComplete 与 Progress()==100 同时成立
*/
package graph

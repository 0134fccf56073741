// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package delegate 定义任务节点与外部协作者（Agent、工具、子工作流）之间的执行契约。

# 概述

执行引擎只认识 Delegate 接口：给定节点请求（节点 ID、参数、运行变量、
所在循环迭代），返回结果或错误。具体做什么由调用方注册的实现决定。

# 核心类型

  - Delegate / Func：执行契约及函数适配器
  - Request：节点请求
  - Output：结果 + 需要写回运行变量的键值
  - Registry：名称到实现的注册表，Scope 支持计划级覆盖
  - AgentDelegate：将 AgentExecutor 适配为 Delegate

# 可组合包装器

重试与熔断不属于图或驱动循环，而是包裹在单个委托外的中间件：
WithRetry、WithCircuitBreaker、WithRateLimit、WithTimeout、
WithDefaults、WithRecovery，通过 Chain 组合。
*/
package delegate

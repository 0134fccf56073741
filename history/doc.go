// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package history 记录每次计划图运行的执行轨迹。

# 概述

Run 保存一次运行的起止时间、最终状态以及每个节点的执行记录（NodeExecution），
循环体每一轮迭代都会产生一条独立记录。Store 定义持久化与查询接口，提供两种实现：

  - MemoryStore：进程内存储，适合测试与单机场景
  - RedisStore：基于 go-redis，使用 JSON 数据键与有序集合索引，支持 TTL

历史记录是运行结束后的报告，而非可恢复的图状态。
*/
package history

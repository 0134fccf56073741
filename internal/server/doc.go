// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供运维 HTTP 服务器的生命周期管理与路由。

# 概述

OpsServer 封装 net/http.Server，统一管理监听、服务与关闭。
NewHandler 暴露 Prometheus 指标、存活检查以及运行历史查询接口，
供 plangraph 命令行在执行计划期间对外提供观测入口。

# 核心类型

  - OpsServer：持有 http.Server 与 net.Listener，
    提供 Start/Shutdown/Addr 生命周期方法，读写与关闭超时固定。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 优雅关闭：Shutdown 在固定超时内完成请求排空。
  - 运行历史：/runs 路由基于 history.Store 查询，未找到时返回 404。
*/
package server

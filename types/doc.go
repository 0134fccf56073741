// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 plangraph 的结构化错误体系。

# 概述

types 是最底层的公共包，不依赖任何内部包。graph、engine、dsl、delegate、
history 返回的错误均为 *Error，携带错误码、出错节点与底层原因，
调用方通过 errors.Is 或 GetErrorCode 按错误码分支处理。

# 错误码分组

  - 图结构：INVALID_NODE、DUPLICATE_NODE、CYCLE_DETECTED、ISOLATED_NODE 等
  - 执行：NODE_FAILED、NO_BRANCH、EVALUATION_FAILED、CIRCUIT_OPEN 等
  - 计划与历史：INVALID_PLAN、MISSING_VARIABLE、RUN_NOT_FOUND
  - 运行终止：STEP_BUDGET_EXCEEDED、TIMEOUT、STALLED、CANCELED

# 主要能力

  - 构造：NewError / Errorf，链式 WithCause / WithNode / WithRetryable
  - 判定：errors.Is 按 Code 匹配，GetErrorCode 沿错误链取码
  - IsRetryable 供委托重试中间件判断是否重试
*/
package types

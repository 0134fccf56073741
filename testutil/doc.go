// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 plangraph 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 图断言: AssertNodeStates / AssertSkipped
  - 异步等待: AssertEventuallyTrue / WaitFor / WaitForChannel
  - 数据工具: MustParseJSON

# 子包

  - testutil/mocks: MockDelegate 与 MockAgent，支持 Builder 模式、
    调用记录与错误注入
  - testutil/fixtures: 预置计划图（线性、菱形、审阅循环）与计划文档

# 使用示例

	ctx := testutil.TestContext(t)
	d := mocks.NewMockDelegate().WithResult("done").WithFailTimes(2)
	g := fixtures.Diamond(t, "work")
*/
package testutil

// Copyright 2026 PromptGate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 PromptGate 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout，
    自动注册 Cleanup 防止泄漏
  - 数据工具: MustParseJSON
  - HTTP 辅助: FreePort 获取空闲端口

# 子包

  - testutil/mocks: MockGenerator（llm.Generator 的模拟实现），
    支持固定响应、安全拦截、错误注入与调用记录
*/
package testutil

// Copyright (c) PromptGate Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 PromptGate HTTP API 的请求处理器实现。

# 概述

handlers 包实现了生成接口、健康检查以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - GenerateHandler : 生成接口：解析 prompt / moderation_level / format，
    同步调用 llm.Generator，按 text、json、html 输出
  - HealthHandler   : 服务健康检查（/health, /healthz, /ready, /version）
  - Response        : 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo       : 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter  : 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck     : 可插拔健康检查接口

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON / WriteText 辅助函数
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 空 prompt 直接返回 400，不调用模型
  - 安全拦截以 200 + X-Moderation-Blocked 头返回拒绝文案
*/
package handlers

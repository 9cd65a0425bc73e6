// Copyright (c) PromptGate Authors.
// Licensed under the MIT License.

/*
Package types 提供 PromptGate 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 llm、api、cmd 等上层
模块提供统一的错误契约，以避免循环依赖。

# 核心类型

  - Error / ErrorCode: 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记

# 主要能力

  - 链式构造：NewError(...).WithCause(...).WithHTTPStatus(...)
  - 错误提取：AsError / GetErrorCode / IsRetryable（均支持 errors.As 解包）
*/
package types

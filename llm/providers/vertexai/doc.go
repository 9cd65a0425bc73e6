// Copyright (c) PromptGate Authors.
// Licensed under the MIT License.

/*
Package vertexai 基于 google.golang.org/genai 实现 Vertex AI Gemini 的
llm.Generator。

# 概述

Provider 使用 Vertex AI 后端调用 generateContent，将审核等级派生的
安全设置与采样参数一并下发，由远端完成内容审核。本包只负责：

  - 构建 genai.Client（项目 + 区域，或 API Key 快速模式）
  - 将 genai.APIError / 网络错误映射为 types.Error
  - 识别 Prompt 级与候选级的安全拦截
  - 通过 observability.Metrics 记录 Span 与指标

不做重试，不做流式输出。
*/
package vertexai

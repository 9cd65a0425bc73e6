// 版权所有 2024 PromptGate Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供生成式模型的统一接入层：单次同步生成请求、响应模型以及
Provider 抽象。

# 概述

本服务只有一条调用链路：一个文本提示词 + 一个审核等级，经由远端模型
服务商同步生成一段文本。本包定义这条链路上的数据结构，具体服务商
实现位于 llm/providers 子包。

# 核心接口

  - [Generator]：生成接口，提供 Generate / HealthCheck / Name
  - [GenerateRequest]：生成请求（Prompt、Model、Level、SafetySettings、Generation）
  - [GenerateResponse]：生成响应（Text、Blocked、FinishReason、Usage）
  - [GenerationConfig]：采样参数（MaxOutputTokens、Temperature、TopP）

# 内容安全

被服务商安全过滤器拦截的结果不视为错误：Generate 返回 Blocked=true 的
响应，并在 Text 中给出拒绝说明，由上层按正常响应输出。

# 无重试

Generate 只发起一次调用。服务商错误原样映射为 types.Error 返回，
不做重试、排队或降级。
*/
package llm

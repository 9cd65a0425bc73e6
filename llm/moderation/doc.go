// 版权所有 2024 PromptGate Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 moderation 定义审核等级（Moderation Level）及其到模型服务商安全过滤
阈值的映射。

# 概述

本服务不在本地实现任何内容审核逻辑。审核完全委托给远端模型服务商的
安全过滤器（Safety Filter），本包只负责把一个具名预设翻译为服务商
接受的 SafetySetting 列表，随请求一并透传。

# 核心类型

  - Level：审核等级枚举（strict、moderate、relaxed、minimal）。
  - Threshold()：等级对应的 genai.HarmBlockThreshold。
  - SafetySettings()：等级对应的完整 SafetySetting 列表，覆盖仇恨言论、
    危险内容、色情内容、骚扰四个类别。

# 映射关系

  - strict   → BLOCK_LOW_AND_ABOVE
  - moderate → BLOCK_MEDIUM_AND_ABOVE（默认）
  - relaxed  → BLOCK_ONLY_HIGH
  - minimal  → BLOCK_NONE

同一等级在任意请求中都映射到相同配置；每次调用返回新的切片，调用方
可以安全修改。
*/
package moderation

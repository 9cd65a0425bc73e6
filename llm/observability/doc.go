// 版权所有 2024 PromptGate Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 observability 为生成调用提供基于 OpenTelemetry 的追踪与指标。

每次 Generate 调用对应一个 llm.generate Span，并记录请求计数、
延迟、Token 用量、安全拦截次数与错误码。未初始化 OTel SDK 时
全局 Provider 为 noop，所有记录均为空操作。
*/
package observability

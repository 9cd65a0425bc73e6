/*
Package main 提供 PromptGate 服务端程序入口。

# 概述

cmd/promptgate 是 PromptGate 的可执行入口，提供 HTTP 服务、健康检查
和版本查询等子命令。程序支持 YAML 配置文件与 .env 加载、结构化日志
（zap）、Prometheus 指标采集、OpenTelemetry 追踪以及配置热重载。

# 核心类型

  - Server     : 主服务器，管理业务与 Metrics 双端口及优雅关闭
  - Middleware : HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestID、OTelTracing、SecurityHeaders、
    RequestLogger、Metrics、CORS、RateLimiter（基于 IP）
  - 配置热重载：日志级别与默认审核等级在配置文件变更后即时生效
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号 → 取消上下文 → errgroup 等待各服务器关闭 → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main

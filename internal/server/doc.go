/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理，支持非阻塞启动、
优雅关闭与上下文驱动的运行模式。

# 概述

本包通过 Manager 封装 net/http.Server，统一管理监听、服务、
关闭与错误传播流程。PromptGate 的业务端口与指标端口各持有一个
Manager，由 cmd/promptgate 通过 errgroup 并发运行。

# 核心类型

  - Manager：HTTP 服务器管理器，持有 http.Server、net.Listener
    与异步错误通道，提供 Start/StartTLS/Run/Shutdown 等生命周期方法。
  - Config：服务器配置，包含监听地址、读写超时、空闲超时、
    最大请求头大小、优雅关闭超时与可选的 TLS 证书。

# 主要能力

  - 非阻塞启动：Start/StartTLS 在后台 goroutine 中运行服务。
  - 阻塞运行：Run 在上下文取消或服务异常时执行优雅关闭并返回。
  - 错误传播：Errors() 返回异步错误通道，供调用方监控服务异常。
  - TLS 支持：证书通过 tlsutil 加载为加固配置（TLS 1.2+，AEAD）。
*/
package server

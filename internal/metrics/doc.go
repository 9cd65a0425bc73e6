/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP 与
模型生成两大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标。Collector 持有
独立的 Registry，使用 promauto.With 注册，并通过 Handler 暴露
/metrics 端点。所有指标按 namespace 隔离。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。
  - instrumentedGenerator：llm.Generator 装饰器，在每次生成调用后
    记录耗时、Token 用量与安全拦截。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 生成指标：请求总数、请求耗时、Token 用量（prompt/completion）、
    安全拦截次数、进行中请求数，按 provider/model/moderation_level 分组。
*/
package metrics

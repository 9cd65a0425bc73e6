// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/BaSui01/promptgate/llm"
	"github.com/BaSui01/promptgate/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	registry *prometheus.Registry

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 生成指标
	generateRequestsTotal   *prometheus.CounterVec
	generateRequestDuration *prometheus.HistogramVec
	generateTokensUsed      *prometheus.CounterVec
	generateBlockedTotal    *prometheus.CounterVec
	generateInFlight        prometheus.Gauge

	logger *zap.Logger
}

// NewCollector 创建指标收集器，指标注册到独立的 Registry
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		},
		[]string{"method", "path"},
	)

	// 生成指标
	c.generateRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generate_requests_total",
			Help:      "Total number of generation requests sent to the model",
		},
		[]string{"provider", "model", "moderation_level", "status"},
	)

	c.generateRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generate_request_duration_seconds",
			Help:      "Generation request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	c.generateTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generate_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	c.generateBlockedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generate_blocked_total",
			Help:      "Total number of responses blocked by provider safety filters",
		},
		[]string{"moderation_level", "reason"},
	)

	c.generateInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generate_in_flight",
			Help:      "Number of generation requests currently waiting on the model",
		},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// Registry 返回指标注册表
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler 返回 /metrics 处理器
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorLog:          zap.NewStdLog(c.logger),
		EnableOpenMetrics: true,
	})
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if requestSize >= 0 {
		c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🤖 生成指标记录
// =============================================================================

// GenerationRecord 单次生成调用的指标数据
type GenerationRecord struct {
	Provider         string
	Model            string
	ModerationLevel  string
	Status           string // success, blocked 或错误码
	BlockReason      string
	Duration         time.Duration
	PromptTokens     int
	CompletionTokens int
}

// RecordGeneration 记录生成调用
func (c *Collector) RecordGeneration(rec GenerationRecord) {
	c.generateRequestsTotal.WithLabelValues(rec.Provider, rec.Model, rec.ModerationLevel, rec.Status).Inc()
	c.generateRequestDuration.WithLabelValues(rec.Provider, rec.Model).Observe(rec.Duration.Seconds())
	if rec.PromptTokens > 0 {
		c.generateTokensUsed.WithLabelValues(rec.Provider, rec.Model, "prompt").Add(float64(rec.PromptTokens))
	}
	if rec.CompletionTokens > 0 {
		c.generateTokensUsed.WithLabelValues(rec.Provider, rec.Model, "completion").Add(float64(rec.CompletionTokens))
	}
	if rec.Status == "blocked" {
		c.generateBlockedTotal.WithLabelValues(rec.ModerationLevel, rec.BlockReason).Inc()
	}
}

// =============================================================================
// 🧩 Generator 装饰器
// =============================================================================

type instrumentedGenerator struct {
	next      llm.Generator
	collector *Collector
}

// InstrumentGenerator 包装 Generator，记录每次调用的指标
func (c *Collector) InstrumentGenerator(next llm.Generator) llm.Generator {
	return &instrumentedGenerator{next: next, collector: c}
}

func (g *instrumentedGenerator) Name() string { return g.next.Name() }

func (g *instrumentedGenerator) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return g.next.HealthCheck(ctx)
}

func (g *instrumentedGenerator) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	g.collector.generateInFlight.Inc()
	defer g.collector.generateInFlight.Dec()

	start := time.Now()
	resp, err := g.next.Generate(ctx, req)

	rec := GenerationRecord{
		Provider:        g.next.Name(),
		Model:           req.Model,
		ModerationLevel: string(req.Level),
		Duration:        time.Since(start),
	}
	switch {
	case err != nil:
		rec.Status = string(types.GetErrorCode(err))
		if rec.Status == "" {
			rec.Status = "error"
		}
	case resp.Blocked:
		rec.Status = "blocked"
		rec.BlockReason = resp.BlockReason
	default:
		rec.Status = "success"
	}
	if resp != nil {
		rec.Model = resp.Model
		rec.PromptTokens = resp.Usage.PromptTokens
		rec.CompletionTokens = resp.Usage.CompletionTokens
	}
	if rec.Model == "" {
		rec.Model = "default"
	}

	g.collector.RecordGeneration(rec)
	return resp, err
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/promptgate/llm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultReadyTimeout 就绪检查整体超时
const DefaultReadyTimeout = 5 * time.Second

// =============================================================================
// 🏥 探针 Handler
// =============================================================================

// ServiceInfo 探针与 /version 附带的服务描述
type ServiceInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
}

// modelNamer 可报告默认模型的 Generator
type modelNamer interface {
	Model() string
}

// NewServiceInfo 从 Generator 读取 provider 与默认模型
func NewServiceInfo(generator llm.Generator, version, buildTime, gitCommit string) ServiceInfo {
	info := ServiceInfo{Version: version, BuildTime: buildTime, GitCommit: gitCommit}
	if generator != nil {
		info.Provider = generator.Name()
		if m, ok := generator.(modelNamer); ok {
			info.Model = m.Model()
		}
	}
	return info
}

// HealthHandler 存活 / 就绪 / 版本探针
type HealthHandler struct {
	info         ServiceInfo
	readyTimeout time.Duration
	logger       *zap.Logger

	mu     sync.RWMutex
	checks []HealthCheck
}

// HealthCheck 就绪检查项
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthStatus 探针响应
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Provider  string                 `json:"provider,omitempty"`
	Model     string                 `json:"model,omitempty"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单项检查结果
type CheckResult struct {
	Status  string `json:"status"` // "pass", "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// NewHealthHandler 创建探针处理器
func NewHealthHandler(info ServiceInfo, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		info:         info,
		readyTimeout: DefaultReadyTimeout,
		logger:       logger.With(zap.String("component", "health")),
	}
}

// WithReadyTimeout 设置就绪检查超时，<=0 时忽略
func (h *HealthHandler) WithReadyTimeout(d time.Duration) *HealthHandler {
	if d > 0 {
		h.readyTimeout = d
	}
	return h
}

// RegisterCheck 注册就绪检查项
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

func (h *HealthHandler) status(state string) HealthStatus {
	return HealthStatus{
		Status:    state,
		Timestamp: time.Now(),
		Provider:  h.info.Provider,
		Model:     h.info.Model,
		Version:   h.info.Version,
	}
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleHealth 处理 /health 请求，不访问上游
// @Summary 健康检查
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务正常"
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.status("healthy"))
}

// HandleHealthz 处理 /healthz 存活探针，与 /health 相同
// @Summary 存活探针
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "进程存活"
// @Router /healthz [get]
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	h.HandleHealth(w, r)
}

// HandleReady 处理 /ready 与 /readyz，并发执行全部检查项
// @Summary 就绪探针
// @Description 检查模型 Provider 凭据与当前配置
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "可接收流量"
// @Failure 503 {object} HealthStatus "Provider 或配置不可用"
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.readyTimeout)
	defer cancel()

	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := h.status("healthy")
	status.Checks = make(map[string]CheckResult, len(checks))

	var mu sync.Mutex
	var g errgroup.Group
	for _, check := range checks {
		g.Go(func() error {
			start := time.Now()
			err := check.Check(ctx)
			result := CheckResult{Status: "pass", Latency: time.Since(start).String()}
			if err != nil {
				result.Status = "fail"
				result.Message = err.Error()
				h.logger.Warn("readiness check failed",
					zap.String("check", check.Name()),
					zap.String("provider", h.info.Provider),
					zap.Error(err))
			}

			mu.Lock()
			status.Checks[check.Name()] = result
			if err != nil {
				status.Status = "unhealthy"
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if status.Status != "healthy" {
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Tags 健康
// @Produce json
// @Success 200 {object} ServiceInfo "版本与上游模型"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.info)
}

// =============================================================================
// 🔧 内置检查项
// =============================================================================

// GeneratorHealthCheck 以 Provider 自身的健康检查作为就绪条件
type GeneratorHealthCheck struct {
	generator llm.Generator
}

// NewGeneratorHealthCheck 创建 Provider 就绪检查
func NewGeneratorHealthCheck(generator llm.Generator) *GeneratorHealthCheck {
	return &GeneratorHealthCheck{generator: generator}
}

func (c *GeneratorHealthCheck) Name() string {
	return c.generator.Name()
}

func (c *GeneratorHealthCheck) Check(ctx context.Context) error {
	status, err := c.generator.HealthCheck(ctx)
	if err != nil {
		return err
	}
	if status != nil && !status.Healthy {
		if status.Message != "" {
			return fmt.Errorf("%s unhealthy: %s", c.generator.Name(), status.Message)
		}
		return fmt.Errorf("%s unhealthy", c.generator.Name())
	}
	return nil
}

// FuncHealthCheck 基于函数的检查项
type FuncHealthCheck struct {
	name  string
	check func(ctx context.Context) error
}

// NewFuncHealthCheck 创建基于函数的检查项
func NewFuncHealthCheck(name string, check func(ctx context.Context) error) *FuncHealthCheck {
	return &FuncHealthCheck{name: name, check: check}
}

func (c *FuncHealthCheck) Name() string {
	return c.name
}

func (c *FuncHealthCheck) Check(ctx context.Context) error {
	return c.check(ctx)
}

// MockGenerator 的 llm.Generator 测试模拟实现。
//
// 支持固定响应、安全拦截与错误注入场景。
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/promptgate/llm"
)

// --- MockGenerator 结构 ---

// MockGenerator 是 llm.Generator 的模拟实现
type MockGenerator struct {
	mu sync.RWMutex

	// 响应配置
	response    string
	model       string
	blocked     bool
	blockReason string
	err         error

	// Token 使用统计
	promptTokens     int
	completionTokens int

	// 健康检查
	healthErr error

	// 调用记录
	calls        []*llm.GenerateRequest
	generateFunc func(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error)

	// 行为控制
	delay time.Duration
}

// NewMockGenerator 创建新的 MockGenerator
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		response:         "Mock response",
		model:            "mock-model",
		promptTokens:     10,
		completionTokens: 20,
	}
}

// --- Builder 方法 ---

// WithResponse 设置固定响应内容
func (m *MockGenerator) WithResponse(response string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithBlocked 模拟安全过滤拦截
func (m *MockGenerator) WithBlocked(reason string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked = true
	m.blockReason = reason
	return m
}

// WithError 设置返回错误
func (m *MockGenerator) WithError(err error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithHealthError 设置健康检查错误
func (m *MockGenerator) WithHealthError(err error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthErr = err
	return m
}

// WithTokenUsage 设置 Token 使用量
func (m *MockGenerator) WithTokenUsage(prompt, completion int) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = prompt
	m.completionTokens = completion
	return m
}

// WithDelay 设置模拟延迟
func (m *MockGenerator) WithDelay(d time.Duration) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithGenerateFunc 设置自定义生成函数，优先于固定响应
func (m *MockGenerator) WithGenerateFunc(fn func(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error)) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateFunc = fn
	return m
}

// --- llm.Generator 实现 ---

// Name 返回 Provider 名称
func (m *MockGenerator) Name() string {
	return "mock"
}

// Model 返回默认模型名
func (m *MockGenerator) Model() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model
}

// HealthCheck 返回健康状态
func (m *MockGenerator) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.healthErr != nil {
		return &llm.HealthStatus{Healthy: false, Message: m.healthErr.Error()}, m.healthErr
	}
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Generate 返回配置的响应并记录调用
func (m *MockGenerator) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	fn := m.generateFunc
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if fn != nil {
		return fn(ctx, req)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}

	resp := &llm.GenerateResponse{
		ID:           "mock-response",
		Provider:     "mock",
		Model:        m.model,
		Text:         m.response,
		Level:        req.Level,
		FinishReason: "STOP",
		Usage: llm.Usage{
			PromptTokens:     m.promptTokens,
			CompletionTokens: m.completionTokens,
			TotalTokens:      m.promptTokens + m.completionTokens,
		},
		CreatedAt: time.Now(),
	}
	if m.blocked {
		resp.Blocked = true
		resp.BlockReason = m.blockReason
		resp.FinishReason = m.blockReason
		resp.Text = llm.BlockedMessage(m.blockReason)
	}
	return resp, nil
}

// --- 调用记录 ---

// CallCount 返回 Generate 调用次数
func (m *MockGenerator) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

// LastRequest 返回最后一次请求
func (m *MockGenerator) LastRequest() *llm.GenerateRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// Reset 清空调用记录
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

var _ llm.Generator = (*MockGenerator)(nil)

package llm

import (
	"context"
	"time"

	"github.com/BaSui01/promptgate/llm/moderation"
	"google.golang.org/genai"
)

// Generator 生成式模型提供者接口
type Generator interface {
	// Generate 同步生成一次完整响应（不支持流式）
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
	// HealthCheck 检查 Provider 是否可用
	HealthCheck(ctx context.Context) (*HealthStatus, error)
	// Name 返回 Provider 名称
	Name() string
}

// GenerationConfig 采样参数
type GenerationConfig struct {
	MaxOutputTokens int32   `json:"max_output_tokens" yaml:"max_output_tokens"`
	Temperature     float32 `json:"temperature" yaml:"temperature"`
	TopP            float32 `json:"top_p" yaml:"top_p"`
}

// DefaultGenerationConfig 返回默认采样参数
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxOutputTokens: 8192,
		Temperature:     1.0,
		TopP:            0.95,
	}
}

// GenerateRequest 单次生成请求
type GenerateRequest struct {
	RequestID  string                 `json:"request_id,omitempty"`
	Prompt     string                 `json:"prompt"`
	Model      string                 `json:"model,omitempty"` // 为空时使用 Provider 默认模型
	Level      moderation.Level       `json:"moderation_level"`
	Generation GenerationConfig       `json:"generation"`
	Safety     []*genai.SafetySetting `json:"-"` // 由 Level 派生
}

// NewGenerateRequest 根据审核等级构建请求，安全设置由等级派生
func NewGenerateRequest(prompt string, level moderation.Level, gen GenerationConfig) *GenerateRequest {
	return &GenerateRequest{
		Prompt:     prompt,
		Level:      level,
		Generation: gen,
		Safety:     level.SafetySettings(),
	}
}

// Usage Token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// GenerateResponse 单次生成结果
type GenerateResponse struct {
	ID           string           `json:"id,omitempty"`
	Provider     string           `json:"provider"`
	Model        string           `json:"model"`
	Text         string           `json:"text"`
	Level        moderation.Level `json:"moderation_level"`
	Blocked      bool             `json:"blocked"`
	BlockReason  string           `json:"block_reason,omitempty"`
	FinishReason string           `json:"finish_reason,omitempty"`
	Usage        Usage            `json:"usage"`
	Latency      time.Duration    `json:"-"`
	CreatedAt    time.Time        `json:"created_at"`
}

// HealthStatus 表示 Provider 健康检查结果。
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Message string        `json:"message,omitempty"`
}

// BlockedMessage 返回安全过滤拦截时展示给调用方的拒绝文案
func BlockedMessage(reason string) string {
	if reason == "" {
		return "The response was blocked by the provider's safety filters."
	}
	return "The response was blocked by the provider's safety filters (reason: " + reason + ")."
}

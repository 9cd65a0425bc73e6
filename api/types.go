package api

import (
	"fmt"
	"strings"
)

// =============================================================================
// 输出格式
// =============================================================================

// Format 响应输出格式
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ParseFormat 解析 format 参数（大小写不敏感），空值返回空 Format
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText, FormatJSON, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q: expected one of text, json, html", s)
	}
}

// ContentType 返回格式对应的 Content-Type
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// =============================================================================
// 生成接口类型
// =============================================================================

// GenerateRequest 生成请求（JSON 请求体）
// @Description 生成请求结构
type GenerateRequest struct {
	// 提示词
	Prompt string `json:"prompt" example:"Write a haiku about the sea"`
	// 审核等级（strict、moderate、relaxed、minimal）
	ModerationLevel string `json:"moderation_level,omitempty" example:"moderate"`
	// 输出格式（text、json、html）
	Format string `json:"format,omitempty" example:"json"`
}

// GenerateResponse 生成响应（format=json）
// @Description 生成响应结构
type GenerateResponse struct {
	// 模型输出；被安全策略拦截时为拒绝文案
	Response string `json:"response"`
	// 实际使用的审核等级
	ModerationLevel string `json:"moderation_level"`
	// 模型名称
	Model string `json:"model,omitempty"`
	// 是否被安全策略拦截
	Blocked bool `json:"blocked"`
	// 拦截原因
	BlockReason string `json:"block_reason,omitempty"`
	// 结束原因
	FinishReason string `json:"finish_reason,omitempty"`
	// Token 用量
	Usage Usage `json:"usage"`
	// 请求 ID
	RequestID string `json:"request_id,omitempty"`
}

// Usage Token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorResponse 错误响应（format=json）
// @Description 错误响应结构
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

package vertexai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/promptgate/llm"
	"github.com/BaSui01/promptgate/llm/observability"
	"github.com/BaSui01/promptgate/types"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	providerName = "vertexai"

	// DefaultModel 未配置模型时使用的默认模型
	DefaultModel = "gemini-1.5-pro-001"

	defaultTimeout = 60 * time.Second
)

// Config Vertex AI Provider 配置
type Config struct {
	Project  string `json:"project" yaml:"project"`
	Location string `json:"location" yaml:"location"`
	Model    string `json:"model" yaml:"model"`
	// APIKey 非空时启用 Vertex AI 快速模式，此时忽略 Project / Location
	APIKey     string        `json:"-" yaml:"api_key"`
	BaseURL    string        `json:"base_url,omitempty" yaml:"base_url"`
	APIVersion string        `json:"api_version,omitempty" yaml:"api_version"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
}

// Provider 实现 llm.Generator
type Provider struct {
	cfg     Config
	client  *genai.Client
	metrics *observability.Metrics
	logger  *zap.Logger
}

// New 创建 Vertex AI Provider
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	clientCfg := &genai.ClientConfig{
		Backend: genai.BackendVertexAI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL,
			APIVersion: cfg.APIVersion,
			Timeout:    genai.Ptr(cfg.Timeout),
		},
	}
	if cfg.APIKey != "" {
		clientCfg.APIKey = cfg.APIKey
	} else {
		if cfg.Project == "" || cfg.Location == "" {
			return nil, types.NewError(types.ErrProviderUnavailable,
				"vertexai: project and location are required when no api key is set")
		}
		clientCfg.Project = cfg.Project
		clientCfg.Location = cfg.Location
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, types.NewError(types.ErrProviderUnavailable, "vertexai: create client failed").
			WithCause(err).
			WithProvider(providerName)
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("vertexai: init metrics: %w", err)
	}

	return &Provider{
		cfg:     cfg,
		client:  client,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "vertexai"), zap.String("model", cfg.Model)),
	}, nil
}

// Name 返回 Provider 名称
func (p *Provider) Name() string { return providerName }

// Model 返回默认模型
func (p *Provider) Model() string { return p.cfg.Model }

// Generate 发起一次同步 generateContent 调用
func (p *Provider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "prompt is required").
			WithHTTPStatus(http.StatusBadRequest).
			WithProvider(providerName)
	}

	model := chooseModel(req, p.cfg.Model)
	attrs := observability.RequestAttrs{
		Provider:        providerName,
		Model:           model,
		ModerationLevel: req.Level.String(),
		RequestID:       req.RequestID,
	}
	ctx, span := p.metrics.StartRequest(ctx, attrs)
	start := time.Now()

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), buildContentConfig(req))
	latency := time.Since(start)
	if err != nil {
		terr := mapError(ctx, err)
		p.metrics.EndRequest(ctx, span, attrs, observability.ResponseAttrs{
			Status:    "error",
			ErrorCode: string(terr.Code),
			Duration:  latency,
		})
		p.logger.Warn("generate failed",
			zap.String("request_id", req.RequestID),
			zap.String("code", string(terr.Code)),
			zap.Duration("latency", latency),
			zap.Error(err))
		return nil, terr
	}

	out, terr := toGenerateResponse(resp, req, model)
	if terr != nil {
		p.metrics.EndRequest(ctx, span, attrs, observability.ResponseAttrs{
			Status:       "error",
			ErrorCode:    string(terr.Code),
			FinishReason: out.FinishReason,
			Duration:     latency,
		})
		p.logger.Warn("empty response from model",
			zap.String("request_id", req.RequestID),
			zap.String("finish_reason", out.FinishReason))
		return nil, terr
	}
	out.Latency = latency

	status := "ok"
	if out.Blocked {
		status = "blocked"
		p.logger.Info("response blocked by safety filters",
			zap.String("request_id", req.RequestID),
			zap.String("moderation_level", req.Level.String()),
			zap.String("block_reason", out.BlockReason))
	}
	p.metrics.EndRequest(ctx, span, attrs, observability.ResponseAttrs{
		Status:           status,
		FinishReason:     out.FinishReason,
		TokensPrompt:     out.Usage.PromptTokens,
		TokensCompletion: out.Usage.CompletionTokens,
		Duration:         latency,
		Blocked:          out.Blocked,
	})

	p.logger.Debug("generate completed",
		zap.String("request_id", req.RequestID),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("latency", latency))

	return out, nil
}

// HealthCheck 通过读取模型元数据检查凭据与模型是否可用
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	_, err := p.client.Models.Get(ctx, p.cfg.Model, nil)
	latency := time.Since(start)
	if err != nil {
		terr := mapError(ctx, err)
		return &llm.HealthStatus{Healthy: false, Latency: latency, Message: terr.Message}, terr
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

func chooseModel(req *llm.GenerateRequest, defaultModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	if defaultModel != "" {
		return defaultModel
	}
	return DefaultModel
}

// buildContentConfig 将采样参数与安全设置转换为 genai 请求配置
func buildContentConfig(req *llm.GenerateRequest) *genai.GenerateContentConfig {
	safety := req.Safety
	if len(safety) == 0 {
		safety = req.Level.SafetySettings()
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(req.Generation.Temperature),
		TopP:           genai.Ptr(req.Generation.TopP),
		SafetySettings: safety,
	}
	if req.Generation.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = req.Generation.MaxOutputTokens
	}
	return cfg
}

// blockingFinishReasons 表示候选因安全策略被终止的结束原因
var blockingFinishReasons = map[genai.FinishReason]bool{
	genai.FinishReasonSafety:            true,
	genai.FinishReasonBlocklist:         true,
	genai.FinishReasonProhibitedContent: true,
	genai.FinishReasonSPII:              true,
	genai.FinishReasonImageSafety:       true,
}

// toGenerateResponse 转换响应。被安全拦截时返回拒绝文案；
// 未被拦截却没有任何文本时返回 UPSTREAM_ERROR。
func toGenerateResponse(resp *genai.GenerateContentResponse, req *llm.GenerateRequest, model string) (*llm.GenerateResponse, *types.Error) {
	out := &llm.GenerateResponse{
		Provider:  providerName,
		Model:     model,
		Level:     req.Level,
		CreatedAt: time.Now(),
	}
	if resp == nil {
		return out, types.NewError(types.ErrUpstreamError, "empty response from model").
			WithHTTPStatus(http.StatusBadGateway).
			WithProvider(providerName)
	}

	out.ID = resp.ResponseID
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != "" && pf.BlockReason != genai.BlockedReasonUnspecified {
		out.Blocked = true
		out.BlockReason = string(pf.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		c := resp.Candidates[0]
		out.FinishReason = string(c.FinishReason)
		if !out.Blocked && blockingFinishReasons[c.FinishReason] {
			out.Blocked = true
			out.BlockReason = string(c.FinishReason)
		}
	}

	if out.Blocked {
		out.Text = llm.BlockedMessage(out.BlockReason)
		return out, nil
	}

	out.Text = resp.Text()
	if strings.TrimSpace(out.Text) == "" {
		msg := "model returned no text"
		if out.FinishReason != "" {
			msg = fmt.Sprintf("model returned no text (finish_reason: %s)", out.FinishReason)
		}
		return out, types.NewError(types.ErrUpstreamError, msg).
			WithHTTPStatus(http.StatusBadGateway).
			WithProvider(providerName)
	}
	return out, nil
}

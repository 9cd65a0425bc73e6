package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/BaSui01/promptgate/api"
	"github.com/BaSui01/promptgate/internal/ctxkeys"
	"github.com/BaSui01/promptgate/internal/render"
	"github.com/BaSui01/promptgate/llm"
	"github.com/BaSui01/promptgate/llm/moderation"
	"github.com/BaSui01/promptgate/types"
	"go.uber.org/zap"
)

// DefaultMaxPromptBytes prompt 默认最大字节数
const DefaultMaxPromptBytes = 32 << 10

// 表单 / JSON 包装字段所需的额外请求体空间
const bodyOverhead = 16 << 10

// =============================================================================
// ✨ 生成接口 Handler
// =============================================================================

// GenerateOptions 生成接口配置
type GenerateOptions struct {
	// DefaultLevel 未指定 moderation_level 时使用的等级
	DefaultLevel moderation.Level
	// Generation 采样参数
	Generation llm.GenerationConfig
	// MaxPromptBytes prompt 最大字节数，<=0 时使用 DefaultMaxPromptBytes
	MaxPromptBytes int
}

// GenerateHandler 生成接口处理器
type GenerateHandler struct {
	generator llm.Generator
	renderer  *render.Renderer
	opts      GenerateOptions
	level     atomic.Value // moderation.Level
	logger    *zap.Logger
}

// NewGenerateHandler 创建生成接口处理器
func NewGenerateHandler(generator llm.Generator, renderer *render.Renderer, opts GenerateOptions, logger *zap.Logger) *GenerateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !opts.DefaultLevel.Valid() {
		opts.DefaultLevel = moderation.DefaultLevel
	}
	if opts.MaxPromptBytes <= 0 {
		opts.MaxPromptBytes = DefaultMaxPromptBytes
	}
	if opts.Generation == (llm.GenerationConfig{}) {
		opts.Generation = llm.DefaultGenerationConfig()
	}
	h := &GenerateHandler{
		generator: generator,
		renderer:  renderer,
		opts:      opts,
		logger:    logger.With(zap.String("component", "generate_handler")),
	}
	h.level.Store(opts.DefaultLevel)
	return h
}

// DefaultLevel 返回当前默认审核等级
func (h *GenerateHandler) DefaultLevel() moderation.Level {
	return h.level.Load().(moderation.Level)
}

// SetDefaultLevel 热更新默认审核等级，无效值被忽略
func (h *GenerateHandler) SetDefaultLevel(level moderation.Level) bool {
	if !level.Valid() {
		return false
	}
	h.level.Store(level)
	return true
}

// generateInput 解析后的请求参数
type generateInput struct {
	prompt string
	level  string
	format string
}

// HandleGenerate 处理生成请求
// @Summary 生成
// @Description 将 prompt 连同审核等级转发给模型，返回纯文本、JSON 或 HTML
// @Tags 生成
// @Accept json,x-www-form-urlencoded,multipart/form-data
// @Produce plain,json,html
// @Param prompt query string true "提示词"
// @Param moderation_level query string false "审核等级" Enums(strict, moderate, relaxed, minimal)
// @Param format query string false "输出格式" Enums(text, json, html)
// @Success 200 {object} api.GenerateResponse "生成结果"
// @Failure 400 {object} api.ErrorResponse "无效请求"
// @Failure 502 {object} api.ErrorResponse "上游错误"
// @Router / [post]
func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	requestID, _ := ctxkeys.RequestID(r.Context())

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		h.writeError(w, r, negotiateFormat("", r), "", requestID,
			types.NewError(types.ErrMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method)).
				WithHTTPStatus(http.StatusMethodNotAllowed))
		return
	}

	in, perr := h.parseInput(w, r)
	if perr != nil {
		h.writeError(w, r, negotiateFormat(in.format, r), in.prompt, requestID, perr)
		return
	}

	format, err := api.ParseFormat(in.format)
	if err != nil {
		h.writeError(w, r, negotiateFormat("", r), in.prompt, requestID,
			types.NewError(types.ErrInvalidRequest, err.Error()).WithHTTPStatus(http.StatusBadRequest))
		return
	}
	format = negotiateFormat(string(format), r)

	// 空 prompt 不调用模型
	if strings.TrimSpace(in.prompt) == "" {
		h.writeError(w, r, format, in.prompt, requestID,
			types.NewError(types.ErrInvalidRequest, "prompt is required").WithHTTPStatus(http.StatusBadRequest))
		return
	}
	if len(in.prompt) > h.opts.MaxPromptBytes {
		h.writeError(w, r, format, "", requestID,
			types.NewError(types.ErrPromptTooLarge,
				fmt.Sprintf("prompt exceeds %d bytes", h.opts.MaxPromptBytes)).
				WithHTTPStatus(http.StatusRequestEntityTooLarge))
		return
	}

	level, err := moderation.ParseLevel(in.level, h.DefaultLevel())
	if err != nil {
		h.writeError(w, r, format, in.prompt, requestID,
			types.NewError(types.ErrInvalidRequest, err.Error()).WithHTTPStatus(http.StatusBadRequest))
		return
	}

	req := llm.NewGenerateRequest(in.prompt, level, h.opts.Generation)
	req.RequestID = requestID

	resp, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		h.writeError(w, r, format, in.prompt, requestID, toTypesError(err, h.generator.Name()))
		return
	}

	w.Header().Set("X-Moderation-Level", string(level))
	if resp.Blocked {
		w.Header().Set("X-Moderation-Blocked", "true")
		h.logger.Info("response blocked",
			zap.String("request_id", requestID),
			zap.String("moderation_level", string(level)),
			zap.String("block_reason", resp.BlockReason))
	}

	h.writeResult(w, format, in.prompt, requestID, resp)
}

// HandleUI 渲染空白表单页面
func (h *GenerateHandler) HandleUI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrMethodNotAllowed,
			fmt.Sprintf("method %s not allowed", r.Method), h.logger)
		return
	}
	h.writePage(w, http.StatusOK, render.PageData{
		ModerationLevel: string(h.DefaultLevel()),
		Levels:          levelNames(),
	})
}

// parseInput 从查询参数、表单或 JSON 请求体中读取参数
func (h *GenerateHandler) parseInput(w http.ResponseWriter, r *http.Request) (generateInput, *types.Error) {
	q := r.URL.Query()
	in := generateInput{
		prompt: q.Get("prompt"),
		level:  q.Get("moderation_level"),
		format: q.Get("format"),
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return in, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	limit := h.maxBodyBytes(mediaType)
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	switch mediaType {
	case "application/json":
		var body api.GenerateRequest
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return in, bodyError(err)
		}
		if len(bytes.TrimSpace(data)) > 0 {
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&body); err != nil {
				return in, types.NewError(types.ErrInvalidRequest, "invalid JSON body").
					WithCause(err).
					WithHTTPStatus(http.StatusBadRequest)
			}
		}
		in.prompt = firstNonEmpty(body.Prompt, in.prompt)
		in.level = firstNonEmpty(body.ModerationLevel, in.level)
		in.format = firstNonEmpty(body.Format, in.format)
		return in, nil

	case "multipart/form-data":
		if err := r.ParseMultipartForm(limit); err != nil {
			return in, bodyError(err)
		}

	default:
		if err := r.ParseForm(); err != nil {
			return in, bodyError(err)
		}
	}

	// 表单字段优先于查询参数
	in.prompt = firstNonEmpty(r.PostFormValue("prompt"), in.prompt)
	in.level = firstNonEmpty(r.PostFormValue("moderation_level"), in.level)
	in.format = firstNonEmpty(r.PostFormValue("format"), in.format)
	return in, nil
}

// maxBodyBytes 请求体上限按编码后的最坏长度计算，解码后的 prompt 另行校验。
// URL 编码每字节最多 3 倍，JSON 转义控制字符最多 6 倍。
func (h *GenerateHandler) maxBodyBytes(mediaType string) int64 {
	factor := 3
	if mediaType == "application/json" {
		factor = 6
	}
	return int64(factor*h.opts.MaxPromptBytes + bodyOverhead)
}

func bodyError(err error) *types.Error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return types.NewError(types.ErrPromptTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)).
			WithCause(err).
			WithHTTPStatus(http.StatusRequestEntityTooLarge)
	}
	return types.NewError(types.ErrInvalidRequest, "invalid request body").
		WithCause(err).
		WithHTTPStatus(http.StatusBadRequest)
}

// negotiateFormat 未显式指定 format 时，Accept: application/json 选择 JSON
func negotiateFormat(requested string, r *http.Request) api.Format {
	if f, err := api.ParseFormat(requested); err == nil && f != "" {
		return f
	}
	if acceptsJSON(r.Header.Get("Accept")) {
		return api.FormatJSON
	}
	return api.FormatText
}

func acceptsJSON(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mediaType == "application/json" {
			return true
		}
	}
	return false
}

// =============================================================================
// 🖨️ 输出
// =============================================================================

func (h *GenerateHandler) writeResult(w http.ResponseWriter, format api.Format, prompt, requestID string, resp *llm.GenerateResponse) {
	switch format {
	case api.FormatJSON:
		WriteJSON(w, http.StatusOK, api.GenerateResponse{
			Response:        resp.Text,
			ModerationLevel: string(resp.Level),
			Model:           resp.Model,
			Blocked:         resp.Blocked,
			BlockReason:     resp.BlockReason,
			FinishReason:    resp.FinishReason,
			Usage: api.Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
			RequestID: requestID,
		})

	case api.FormatHTML:
		body, err := h.renderer.Markdown(resp.Text)
		if err != nil {
			h.logger.Error("render markdown failed", zap.String("request_id", requestID), zap.Error(err))
			WriteText(w, http.StatusOK, resp.Text)
			return
		}
		h.writePage(w, http.StatusOK, render.PageData{
			Prompt:          prompt,
			ModerationLevel: string(resp.Level),
			Levels:          levelNames(),
			Model:           resp.Model,
			Response:        body,
			Blocked:         resp.Blocked,
			RequestID:       requestID,
		})

	default:
		WriteText(w, http.StatusOK, resp.Text)
	}
}

func (h *GenerateHandler) writeError(w http.ResponseWriter, r *http.Request, format api.Format, prompt, requestID string, err *types.Error) {
	status := HTTPStatus(err)
	logError(h.logger.With(zap.String("request_id", requestID), zap.String("path", r.URL.Path)), err, status)

	switch format {
	case api.FormatJSON:
		WriteJSON(w, status, api.ErrorResponse{
			Error:     err.Message,
			Code:      string(err.Code),
			Retryable: err.Retryable,
			RequestID: requestID,
		})
	case api.FormatHTML:
		h.writePage(w, status, render.PageData{
			Prompt:          prompt,
			ModerationLevel: string(h.DefaultLevel()),
			Levels:          levelNames(),
			Error:           err.Message,
			RequestID:       requestID,
		})
	default:
		WriteText(w, status, "Error: "+err.Message)
	}
}

func (h *GenerateHandler) writePage(w http.ResponseWriter, status int, data render.PageData) {
	var buf bytes.Buffer
	if err := h.renderer.Page(&buf, data); err != nil {
		h.logger.Error("render page failed", zap.Error(err))
		WriteText(w, http.StatusInternalServerError, "Error: failed to render page")
		return
	}
	w.Header().Set("Content-Type", api.FormatHTML.ContentType())
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// toTypesError 将 Provider 返回的错误统一为 *types.Error
func toTypesError(err error, provider string) *types.Error {
	if terr, ok := types.AsError(err); ok {
		return terr
	}
	return types.NewError(types.ErrUpstreamError, err.Error()).
		WithCause(err).
		WithHTTPStatus(http.StatusBadGateway).
		WithProvider(provider)
}

func levelNames() []string {
	levels := moderation.Levels()
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = string(l)
	}
	return names
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

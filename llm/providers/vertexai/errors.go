package vertexai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/BaSui01/promptgate/types"
	"google.golang.org/genai"
)

// mapError 将 genai / 网络错误映射为 types.Error
func mapError(ctx context.Context, err error) *types.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.NewError(types.ErrUpstreamTimeout, "model request timed out").
			WithCause(err).
			WithHTTPStatus(http.StatusGatewayTimeout).
			WithRetryable(true).
			WithProvider(providerName)
	}
	if errors.Is(err, context.Canceled) {
		return types.NewError(types.ErrUpstreamError, "model request canceled").
			WithCause(err).
			WithHTTPStatus(http.StatusBadGateway).
			WithProvider(providerName)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return mapAPIError(apiErr).WithCause(err)
	}

	return types.NewError(types.ErrUpstreamError, err.Error()).
		WithCause(err).
		WithHTTPStatus(http.StatusBadGateway).
		WithRetryable(true).
		WithProvider(providerName)
}

// mapAPIError 将远端状态码映射为错误码与对外 HTTP 状态
func mapAPIError(apiErr genai.APIError) *types.Error {
	msg := apiErrorMessage(apiErr)

	switch apiErr.Code {
	case http.StatusBadRequest:
		if strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED") || strings.Contains(strings.ToLower(msg), "quota") {
			return types.NewError(types.ErrQuotaExceeded, msg).
				WithHTTPStatus(http.StatusTooManyRequests).
				WithProvider(providerName)
		}
		return types.NewError(types.ErrInvalidRequest, msg).
			WithHTTPStatus(http.StatusBadRequest).
			WithProvider(providerName)
	case http.StatusUnauthorized:
		return types.NewError(types.ErrAuthentication, msg).
			WithHTTPStatus(http.StatusBadGateway).
			WithProvider(providerName)
	case http.StatusForbidden:
		return types.NewError(types.ErrForbidden, msg).
			WithHTTPStatus(http.StatusBadGateway).
			WithProvider(providerName)
	case http.StatusNotFound:
		return types.NewError(types.ErrModelNotFound, msg).
			WithHTTPStatus(http.StatusBadGateway).
			WithProvider(providerName)
	case http.StatusTooManyRequests:
		return types.NewError(types.ErrQuotaExceeded, msg).
			WithHTTPStatus(http.StatusTooManyRequests).
			WithRetryable(true).
			WithProvider(providerName)
	case http.StatusServiceUnavailable:
		return types.NewError(types.ErrServiceUnavailable, msg).
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithRetryable(true).
			WithProvider(providerName)
	case http.StatusGatewayTimeout:
		return types.NewError(types.ErrUpstreamTimeout, msg).
			WithHTTPStatus(http.StatusGatewayTimeout).
			WithRetryable(true).
			WithProvider(providerName)
	default:
		return types.NewError(types.ErrUpstreamError, msg).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(apiErr.Code >= 500).
			WithProvider(providerName)
	}
}

func apiErrorMessage(apiErr genai.APIError) string {
	msg := strings.TrimSpace(apiErr.Message)
	if msg == "" {
		msg = http.StatusText(apiErr.Code)
	}
	if apiErr.Status != "" && !strings.Contains(msg, apiErr.Status) {
		return fmt.Sprintf("%s (status: %s)", msg, apiErr.Status)
	}
	return msg
}

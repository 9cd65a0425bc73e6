package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/promptgate/llm"
	"github.com/BaSui01/promptgate/llm/moderation"
	"github.com/BaSui01/promptgate/testutil/mocks"
	"github.com/BaSui01/promptgate/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector("test", zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.Registry())
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.generateRequestsTotal)
	assert.NotNil(t, collector.generateTokensUsed)

	// 独立 Registry，重复创建不会冲突
	assert.NotPanics(t, func() { NewCollector("test", nil) })
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector("test", zap.NewNop())

	collector.RecordHTTPRequest("GET", "/", 200, 100*time.Millisecond, 1024, 2048)
	collector.RecordHTTPRequest("GET", "/", 201, 50*time.Millisecond, 512, 1024)
	collector.RecordHTTPRequest("POST", "/", 502, 50*time.Millisecond, -1, 10)

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/", "5xx")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.httpRequestDuration))
	// 未知请求体大小不计入
	assert.Equal(t, 1, testutil.CollectAndCount(collector.httpRequestSize))
}

func TestCollector_RecordGeneration(t *testing.T) {
	collector := NewCollector("test", zap.NewNop())

	collector.RecordGeneration(GenerationRecord{
		Provider: "vertexai", Model: "gemini", ModerationLevel: "strict", Status: "success",
		Duration: 500 * time.Millisecond, PromptTokens: 100, CompletionTokens: 50,
	})
	collector.RecordGeneration(GenerationRecord{
		Provider: "vertexai", Model: "gemini", ModerationLevel: "strict", Status: "blocked",
		BlockReason: "SAFETY", Duration: 100 * time.Millisecond,
	})

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.generateRequestsTotal.WithLabelValues("vertexai", "gemini", "strict", "success")))
	assert.Equal(t, float64(100), testutil.ToFloat64(collector.generateTokensUsed.WithLabelValues("vertexai", "gemini", "prompt")))
	assert.Equal(t, float64(50), testutil.ToFloat64(collector.generateTokensUsed.WithLabelValues("vertexai", "gemini", "completion")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.generateBlockedTotal.WithLabelValues("strict", "SAFETY")))
}

func TestCollector_InstrumentGenerator(t *testing.T) {
	tests := []struct {
		name       string
		gen        *mocks.MockGenerator
		wantStatus string
		wantErr    bool
	}{
		{name: "success", gen: mocks.NewMockGenerator().WithTokenUsage(7, 3), wantStatus: "success"},
		{name: "blocked", gen: mocks.NewMockGenerator().WithBlocked("SAFETY"), wantStatus: "blocked"},
		{
			name:       "typed error",
			gen:        mocks.NewMockGenerator().WithError(types.NewError(types.ErrUpstreamTimeout, "slow")),
			wantStatus: string(types.ErrUpstreamTimeout),
			wantErr:    true,
		},
		{name: "plain error", gen: mocks.NewMockGenerator().WithError(errors.New("boom")), wantStatus: "error", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := NewCollector("test", zap.NewNop())
			gen := collector.InstrumentGenerator(tt.gen)
			assert.Equal(t, "mock", gen.Name())

			req := llm.NewGenerateRequest("hi", moderation.LevelRelaxed, llm.DefaultGenerationConfig())
			_, err := gen.Generate(context.Background(), req)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, 1, tt.gen.CallCount())
			assert.Equal(t, 1, testutil.CollectAndCount(collector.generateRequestsTotal))

			var model string
			if tt.wantErr {
				model = "default"
			} else {
				model = "mock-model"
			}
			assert.Equal(t, float64(1), testutil.ToFloat64(
				collector.generateRequestsTotal.WithLabelValues("mock", model, "relaxed", tt.wantStatus)))
			assert.Equal(t, float64(0), testutil.ToFloat64(collector.generateInFlight))
		})
	}
}

func TestCollector_InstrumentGeneratorHealthCheck(t *testing.T) {
	collector := NewCollector("test", zap.NewNop())
	gen := collector.InstrumentGenerator(mocks.NewMockGenerator().WithHealthError(errors.New("down")))

	_, err := gen.HealthCheck(context.Background())
	assert.Error(t, err)
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector("promptgate", zap.NewNop())
	collector.RecordHTTPRequest("GET", "/", 200, time.Millisecond, 0, 10)

	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "promptgate_http_requests_total"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector("test", zap.NewNop())
	gen := collector.InstrumentGenerator(mocks.NewMockGenerator())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/", 200, 100*time.Millisecond, 1024, 2048)
			_, _ = gen.Generate(context.Background(),
				llm.NewGenerateRequest("hi", moderation.LevelModerate, llm.DefaultGenerationConfig()))
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(10), testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/", "2xx")))
	assert.Equal(t, float64(10), testutil.ToFloat64(
		collector.generateRequestsTotal.WithLabelValues("mock", "mock-model", "moderate", "success")))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(200))
	assert.Equal(t, "3xx", statusCode(302))
	assert.Equal(t, "4xx", statusCode(404))
	assert.Equal(t, "5xx", statusCode(503))
	assert.Equal(t, "unknown", statusCode(0))
}

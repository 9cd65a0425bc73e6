package main

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/promptgate/config"
	"github.com/BaSui01/promptgate/llm/moderation"
	"github.com/BaSui01/promptgate/testutil"
	"github.com/BaSui01/promptgate/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func testServerConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.LLM.ProjectID = "test-project"
	cfg.LLM.Region = "us-central1"
	return cfg
}

func newTestHTTPServer(t *testing.T, cfg *config.Config, gen *mocks.MockGenerator) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(cfg, nil, gen, zaptest.NewLogger(t), zap.NewAtomicLevel())

	handler, err := s.Handler(testutil.TestContext(t))
	require.NoError(t, err)

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, rawURL string, header ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServer_Routes(t *testing.T) {
	gen := mocks.NewMockGenerator().WithResponse("**bold** answer")
	_, ts := newTestHTTPServer(t, testServerConfig(), gen)

	t.Run("root text", func(t *testing.T) {
		resp, body := get(t, ts.URL+"/?prompt=hello")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Equal(t, "**bold** answer", body)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		assert.Equal(t, "moderate", resp.Header.Get("X-Moderation-Level"))
	})

	t.Run("api json", func(t *testing.T) {
		resp, err := http.PostForm(ts.URL+"/api/v1/generate", url.Values{
			"prompt": {"hello"}, "moderation_level": {"strict"}, "format": {"json"},
		})
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		out := testutil.MustParseJSON[map[string]any](string(raw))
		assert.Equal(t, "**bold** answer", out["response"])
		assert.Equal(t, "strict", out["moderation_level"])

		// 请求 ID 传递到 Generator
		assert.Equal(t, resp.Header.Get("X-Request-ID"), gen.LastRequest().RequestID)
	})

	t.Run("html", func(t *testing.T) {
		resp, body := get(t, ts.URL+"/?prompt=hello&format=html")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "<strong>bold</strong>")
		assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "'unsafe-inline'")
	})

	t.Run("empty prompt", func(t *testing.T) {
		before := gen.CallCount()
		resp, _ := get(t, ts.URL+"/")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, before, gen.CallCount())
	})

	t.Run("ui", func(t *testing.T) {
		resp, body := get(t, ts.URL+"/ui")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "<form")
	})

	t.Run("health", func(t *testing.T) {
		for _, path := range []string{"/health", "/healthz", "/ready", "/readyz"} {
			resp, _ := get(t, ts.URL+path)
			assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		}
	})

	t.Run("version", func(t *testing.T) {
		resp, body := get(t, ts.URL+"/version")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `"version":"dev"`)
		assert.Contains(t, body, `"provider":"mock"`)
		assert.Contains(t, body, `"model":"mock-model"`)
	})

	t.Run("unknown path", func(t *testing.T) {
		resp, _ := get(t, ts.URL+"/favicon.ico")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_ReadyFailsWhenGeneratorUnhealthy(t *testing.T) {
	gen := mocks.NewMockGenerator().WithHealthError(errors.New("vertex unreachable"))
	_, ts := newTestHTTPServer(t, testServerConfig(), gen)

	resp, body := get(t, ts.URL+"/ready")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "vertex unreachable")

	// 存活探针不依赖上游
	resp, _ = get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_UIDisabled(t *testing.T) {
	cfg := testServerConfig()
	cfg.Server.EnableUI = false
	_, ts := newTestHTTPServer(t, cfg, mocks.NewMockGenerator())

	resp, _ := get(t, ts.URL+"/ui")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RateLimit(t *testing.T) {
	cfg := testServerConfig()
	cfg.Server.RateLimitRPS = 0.01
	cfg.Server.RateLimitBurst = 1
	_, ts := newTestHTTPServer(t, cfg, mocks.NewMockGenerator())

	resp, _ := get(t, ts.URL+"/?prompt=one")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, ts.URL+"/?prompt=two")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestServer_GenerationMetrics(t *testing.T) {
	gen := mocks.NewMockGenerator()
	s, ts := newTestHTTPServer(t, testServerConfig(), gen)

	resp, _ := get(t, ts.URL+"/?prompt=hi&moderation_level=minimal")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	w := httptest.NewRecorder()
	s.metricsCollector.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `promptgate_generate_requests_total{model="mock-model",moderation_level="minimal",provider="mock",status="success"} 1`), body)
	assert.Contains(t, body, "promptgate_http_requests_total")
}

func TestServer_ApplyConfig(t *testing.T) {
	cfg := testServerConfig()
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	s := NewServer(cfg, nil, mocks.NewMockGenerator(), zap.NewNop(), level)
	_, err := s.Handler(testutil.TestContext(t))
	require.NoError(t, err)

	next := testServerConfig()
	next.Log.Level = "debug"
	next.LLM.DefaultModerationLevel = "strict"
	s.applyConfig(cfg, next)

	assert.Equal(t, zap.DebugLevel, level.Level())
	assert.Equal(t, moderation.LevelStrict, s.generateHandler.DefaultLevel())
}

func TestServer_InitReloader(t *testing.T) {
	s := NewServer(testServerConfig(), nil, mocks.NewMockGenerator(), zap.NewNop(), zap.NewAtomicLevel())
	s.initReloader()
	assert.Nil(t, s.reloader)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  project_id: p\n  region: r\n"), 0o644))

	s = NewServer(testServerConfig(), config.NewLoader().WithConfigPath(path).WithDotEnv(),
		mocks.NewMockGenerator(), zap.NewNop(), zap.NewAtomicLevel())
	_, err := s.Handler(testutil.TestContext(t))
	require.NoError(t, err)
	s.initReloader()
	require.NotNil(t, s.reloader)
	assert.Same(t, s.cfg, s.reloader.Current())
	assert.Same(t, s.cfg, s.currentConfig())
}

func TestServer_ReadyChecksConfig(t *testing.T) {
	cfg := testServerConfig()
	_, ts := newTestHTTPServer(t, cfg, mocks.NewMockGenerator())

	resp, body := get(t, ts.URL+"/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"config"`)
}

func TestServer_ListenerConfigs(t *testing.T) {
	cfg := testServerConfig()
	cfg.Server.HTTPPort = 8081
	cfg.Server.MetricsPort = 9092
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 90 * time.Second
	cfg.Server.TLSCertFile = "cert.pem"
	cfg.Server.TLSKeyFile = "key.pem"
	s := NewServer(cfg, nil, mocks.NewMockGenerator(), zap.NewNop(), zap.NewAtomicLevel())

	httpCfg := s.httpServerConfig()
	assert.Equal(t, ":8081", httpCfg.Addr)
	assert.Equal(t, 90*time.Second, httpCfg.WriteTimeout)
	assert.True(t, httpCfg.TLSEnabled())

	metricsCfg := s.metricsServerConfig()
	assert.Equal(t, ":9092", metricsCfg.Addr)
	assert.Equal(t, 5*time.Second, metricsCfg.ReadTimeout)
	assert.Equal(t, 90*time.Second, metricsCfg.WriteTimeout)
	assert.False(t, metricsCfg.TLSEnabled())
}

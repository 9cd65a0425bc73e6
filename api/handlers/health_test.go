package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/promptgate/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testServiceInfo() ServiceInfo {
	return NewServiceInfo(mocks.NewMockGenerator(), "1.2.3", "2026-01-01T00:00:00Z", "abc123")
}

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthStatus {
	t.Helper()
	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	return status
}

func TestNewServiceInfo(t *testing.T) {
	info := testServiceInfo()
	assert.Equal(t, "mock", info.Provider)
	assert.Equal(t, "mock-model", info.Model)
	assert.Equal(t, "1.2.3", info.Version)

	// 无 Generator 时只保留构建信息
	bare := NewServiceInfo(nil, "dev", "", "")
	assert.Empty(t, bare.Provider)
	assert.Equal(t, "dev", bare.Version)
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler(testServiceInfo(), zap.NewNop())
	// 存活探针不执行就绪检查
	h.RegisterCheck(NewFuncHealthCheck("never", func(context.Context) error {
		return errors.New("should not run")
	}))

	for path, handle := range map[string]http.HandlerFunc{
		"/health":  h.HandleHealth,
		"/healthz": h.HandleHealthz,
	} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handle(w, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			status := decodeHealth(t, w)
			assert.Equal(t, "healthy", status.Status)
			assert.Equal(t, "mock", status.Provider)
			assert.Equal(t, "mock-model", status.Model)
			assert.Empty(t, status.Checks)
		})
	}
}

func TestHealthHandler_HandleReady(t *testing.T) {
	tests := []struct {
		name       string
		generator  *mocks.MockGenerator
		configErr  error
		wantStatus int
		wantState  string
		wantFailed []string
	}{
		{
			name:       "provider and config ok",
			generator:  mocks.NewMockGenerator(),
			wantStatus: http.StatusOK,
			wantState:  "healthy",
		},
		{
			name:       "provider credentials missing",
			generator:  mocks.NewMockGenerator().WithHealthError(errors.New("could not find default credentials")),
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unhealthy",
			wantFailed: []string{"mock"},
		},
		{
			name:       "config invalid",
			generator:  mocks.NewMockGenerator(),
			configErr:  errors.New("llm.project_id is required"),
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unhealthy",
			wantFailed: []string{"config"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(NewServiceInfo(tt.generator, "dev", "", ""), zap.NewNop())
			h.RegisterCheck(NewGeneratorHealthCheck(tt.generator))
			h.RegisterCheck(NewFuncHealthCheck("config", func(context.Context) error { return tt.configErr }))

			w := httptest.NewRecorder()
			h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			status := decodeHealth(t, w)
			assert.Equal(t, tt.wantState, status.Status)
			assert.Equal(t, "mock-model", status.Model)
			require.Len(t, status.Checks, 2)
			for _, name := range tt.wantFailed {
				assert.Equal(t, "fail", status.Checks[name].Status, name)
				assert.NotEmpty(t, status.Checks[name].Message)
			}
		})
	}
}

func TestHealthHandler_ReadyTimeout(t *testing.T) {
	gen := mocks.NewMockGenerator()
	h := NewHealthHandler(NewServiceInfo(gen, "dev", "", ""), zap.NewNop()).
		WithReadyTimeout(20 * time.Millisecond)
	h.RegisterCheck(NewFuncHealthCheck("vertex", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	start := time.Now()
	w := httptest.NewRecorder()
	h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decodeHealth(t, w).Checks["vertex"].Message, "deadline exceeded")
}

func TestHealthHandler_ReadyRunsChecksConcurrently(t *testing.T) {
	h := NewHealthHandler(testServiceInfo(), zap.NewNop())

	// 两个检查互相等待，串行执行会超时
	var wg sync.WaitGroup
	wg.Add(2)
	for _, name := range []string{"a", "b"} {
		h.RegisterCheck(NewFuncHealthCheck(name, func(ctx context.Context) error {
			wg.Done()
			done := make(chan struct{})
			go func() { wg.Wait(); close(done) }()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}))
	}

	w := httptest.NewRecorder()
	h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	h := NewHealthHandler(testServiceInfo(), zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleVersion(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.2.3", data["version"])
	assert.Equal(t, "abc123", data["git_commit"])
	assert.Equal(t, "mock", data["provider"])
	assert.Equal(t, "mock-model", data["model"])
}

func TestGeneratorHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		check := NewGeneratorHealthCheck(mocks.NewMockGenerator())
		assert.Equal(t, "mock", check.Name())
		assert.NoError(t, check.Check(context.Background()))
	})

	t.Run("unhealthy", func(t *testing.T) {
		check := NewGeneratorHealthCheck(mocks.NewMockGenerator().WithHealthError(errors.New("no credentials")))
		err := check.Check(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no credentials")
	})
}

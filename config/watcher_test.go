package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// eventRecorder 线程安全地收集事件
type eventRecorder struct {
	mu     sync.Mutex
	events []FileEvent
}

func (r *eventRecorder) record(e FileEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ops() []FileOp {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]FileOp, 0, len(r.events))
	for _, e := range r.events {
		ops = append(ops, e.Op)
	}
	return ops
}

func newTestWatcher(t *testing.T, path string) (*FileWatcher, *eventRecorder) {
	t.Helper()
	w, err := NewFileWatcher([]string{path},
		WithPollInterval(10*time.Millisecond),
		WithDebounceDelay(20*time.Millisecond),
		WithWatcherLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	rec := &eventRecorder{}
	w.OnChange(rec.record)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })
	return w, rec
}

func TestFileOp_String(t *testing.T) {
	assert.Equal(t, "CREATE", FileOpCreate.String())
	assert.Equal(t, "WRITE", FileOpWrite.String())
	assert.Equal(t, "REMOVE", FileOpRemove.String())
	assert.Equal(t, "UNKNOWN", FileOp(42).String())
}

func TestFileWatcher_DetectsWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))

	_, rec := newTestWatcher(t, path)

	// 大小变化保证即使 mtime 精度较粗也能检测到
	require.NoError(t, os.WriteFile(path, []byte("a: 12345\n"), 0o644))

	require.Eventually(t, func() bool {
		return len(rec.ops()) > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, FileOpWrite, rec.ops()[0])
}

func TestFileWatcher_DetectsCreateAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.yaml")

	_, rec := newTestWatcher(t, path)

	require.NoError(t, os.WriteFile(path, []byte("x: 1\n"), 0o644))
	require.Eventually(t, func() bool {
		ops := rec.ops()
		return len(ops) == 1 && ops[0] == FileOpCreate
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		ops := rec.ops()
		return len(ops) == 2 && ops[1] == FileOpRemove
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFileWatcher_StartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	w, err := NewFileWatcher([]string{path})
	require.NoError(t, err)

	assert.False(t, w.IsRunning())
	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start(context.Background()))

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	assert.NoError(t, w.Stop())

	// 路径被解析为绝对路径
	paths := w.Paths()
	require.Len(t, paths, 1)
	assert.True(t, filepath.IsAbs(paths[0]))
}

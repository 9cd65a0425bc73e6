// =============================================================================
// 🔄 配置热重载
// =============================================================================
// 监听配置文件，变更后重新加载、验证并原子替换当前配置。
// 仅日志级别与默认审核等级会在运行时生效，其余字段变更需重启。
// =============================================================================
package config

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ReloadHook 配置变更回调
type ReloadHook func(oldCfg, newCfg *Config)

// Reloader 配置热重载器
type Reloader struct {
	loader  *Loader
	current atomic.Pointer[Config]

	mu      sync.Mutex
	hooks   []ReloadHook
	watcher *FileWatcher

	logger *zap.Logger
}

// NewReloader 创建热重载器，initial 为已加载并验证过的配置
func NewReloader(loader *Loader, initial *Config, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reloader{
		loader: loader,
		logger: logger.With(zap.String("component", "config_reloader")),
	}
	r.current.Store(initial)
	return r
}

// Current 返回当前配置
func (r *Reloader) Current() *Config {
	return r.current.Load()
}

// OnReload 注册配置变更回调
func (r *Reloader) OnReload(hook ReloadHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

// Reload 重新加载配置，验证失败时保留旧配置
func (r *Reloader) Reload() error {
	cfg, err := r.loader.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	old := r.current.Swap(cfg)

	if fields := RestartRequired(old, cfg); len(fields) > 0 {
		r.logger.Warn("Config fields changed that only apply after restart",
			zap.Strings("fields", fields))
	}

	r.mu.Lock()
	hooks := make([]ReloadHook, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook(old, cfg)
	}

	r.logger.Info("Configuration reloaded",
		zap.String("log_level", cfg.Log.Level),
		zap.String("default_moderation_level", cfg.LLM.DefaultModerationLevel))
	return nil
}

// Watch 开始监听配置文件，未设置配置文件时返回错误
func (r *Reloader) Watch(ctx context.Context, opts ...WatcherOption) error {
	path := r.loader.ConfigPath()
	if path == "" {
		return fmt.Errorf("no config file to watch")
	}

	opts = append([]WatcherOption{WithWatcherLogger(r.logger)}, opts...)
	watcher, err := NewFileWatcher([]string{path}, opts...)
	if err != nil {
		return err
	}
	watcher.OnChange(func(event FileEvent) {
		if event.Op == FileOpRemove {
			r.logger.Warn("Config file removed, keeping current configuration",
				zap.String("path", event.Path))
			return
		}
		if err := r.Reload(); err != nil {
			r.logger.Error("Config reload failed, keeping current configuration",
				zap.String("path", event.Path),
				zap.Error(err))
		}
	})

	if err := watcher.Start(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	r.watcher = watcher
	r.mu.Unlock()
	return nil
}

// Stop 停止文件监听
func (r *Reloader) Stop() error {
	r.mu.Lock()
	watcher := r.watcher
	r.watcher = nil
	r.mu.Unlock()

	if watcher == nil {
		return nil
	}
	return watcher.Stop()
}

// RestartRequired 返回变更后需要重启才能生效的字段
func RestartRequired(oldCfg, newCfg *Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}

	var fields []string
	check := func(name string, changed bool) {
		if changed {
			fields = append(fields, name)
		}
	}

	check("server.http_port", oldCfg.Server.HTTPPort != newCfg.Server.HTTPPort)
	check("server.metrics_port", oldCfg.Server.MetricsPort != newCfg.Server.MetricsPort)
	check("server.read_timeout", oldCfg.Server.ReadTimeout != newCfg.Server.ReadTimeout)
	check("server.write_timeout", oldCfg.Server.WriteTimeout != newCfg.Server.WriteTimeout)
	check("server.max_prompt_bytes", oldCfg.Server.MaxPromptBytes != newCfg.Server.MaxPromptBytes)
	check("server.rate_limit_rps", oldCfg.Server.RateLimitRPS != newCfg.Server.RateLimitRPS)
	check("llm.project_id", oldCfg.LLM.ProjectID != newCfg.LLM.ProjectID)
	check("llm.region", oldCfg.LLM.Region != newCfg.LLM.Region)
	check("llm.model", oldCfg.LLM.Model != newCfg.LLM.Model)
	check("llm.api_key", oldCfg.LLM.APIKey != newCfg.LLM.APIKey)
	check("llm.generation", oldCfg.LLM.Generation != newCfg.LLM.Generation)
	check("log.format", oldCfg.Log.Format != newCfg.Log.Format)
	check("telemetry", oldCfg.Telemetry != newCfg.Telemetry)

	return fields
}
